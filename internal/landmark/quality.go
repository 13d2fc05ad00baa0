package landmark

// Frame rejection reasons reported by AssessFrame.
const (
	ReasonNoDetection          = "no_detection"
	ReasonInsufficientLandmark = "insufficient_landmarks"
	ReasonLowVisibility        = "low_visibility"
	ReasonKeyLandmarksMissing  = "key_landmarks_missing"
)

// keyCoverage is the fraction of KeyBody landmarks that must be visible.
const keyCoverage = 0.75

// FrameCriteria configures per-frame screening.
type FrameCriteria struct {
	MinVisibility       float64 // Visibility at or above which a landmark counts as visible
	MinVisibleLandmarks int     // Landmarks required overall; zero disables screening
}

// FrameQuality is the screening outcome for one frame.
type FrameQuality struct {
	Valid          bool
	Reason         string
	Total          int
	Visible        int
	KeyVisible     int
	MeanVisibility float64
	Score          float64 // 0.5*visible ratio + 0.5*mean visibility, in [0,1]
}

// Enabled reports whether screening should run at all.
func (c FrameCriteria) Enabled() bool {
	return c.MinVisibleLandmarks > 0
}

// AssessFrame screens one frame's observations against the criteria.
// Frames that fail are still well-formed; the caller decides whether to drop them.
func AssessFrame(set Set, c FrameCriteria) FrameQuality {
	q := FrameQuality{Total: len(set)}
	if len(set) == 0 {
		q.Reason = ReasonNoDetection
		return q
	}
	if len(set) < c.MinVisibleLandmarks {
		q.Reason = ReasonInsufficientLandmark
		return q
	}

	var sum float64
	seenKey := make(map[ID]bool, len(KeyBody))
	for _, o := range set {
		sum += o.Visibility
		if o.Visibility < c.MinVisibility {
			continue
		}
		q.Visible++
		if isKey(o.ID) && !seenKey[o.ID] {
			seenKey[o.ID] = true
			q.KeyVisible++
		}
	}
	q.MeanVisibility = sum / float64(len(set))
	q.Score = 0.5*float64(q.Visible)/float64(len(set)) + 0.5*q.MeanVisibility

	switch {
	case q.Visible < c.MinVisibleLandmarks:
		q.Reason = ReasonLowVisibility
	case float64(q.KeyVisible) < float64(len(KeyBody))*keyCoverage:
		q.Reason = ReasonKeyLandmarksMissing
	default:
		q.Valid = true
	}
	return q
}

func isKey(id ID) bool {
	for _, k := range KeyBody {
		if k == id {
			return true
		}
	}
	return false
}
