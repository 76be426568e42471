package domain

// TranscriptSegment is one timed caption line of a video transcript.
type TranscriptSegment struct {
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Text     string  `json:"text"`
}

// End returns the segment end offset in seconds.
func (s TranscriptSegment) End() float64 {
	return s.Start + s.Duration
}

// TranscriptText joins segment texts with single spaces.
func TranscriptText(segments []TranscriptSegment) string {
	n := 0
	for _, s := range segments {
		n += len(s.Text) + 1
	}
	buf := make([]byte, 0, n)
	for i, s := range segments {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = append(buf, s.Text...)
	}
	return string(buf)
}
