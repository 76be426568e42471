// Package moments derives highlight segments of a video from AI output or its transcript.
package moments

import (
	"math"
	"sort"
	"strings"

	"github.com/timmy/sportsclips/internal/domain"
)

// Moment is a time-bounded highlight in seconds from the start of the video.
type Moment struct {
	Start       float64
	End         float64
	Confidence  float64
	Label       string
	Description string
}

// Duration returns End - Start.
func (m Moment) Duration() float64 {
	return m.End - m.Start
}

// Options tunes derivation and merging.
type Options struct {
	MaxMoments     int
	ChunkSeconds   float64
	OverlapSeconds float64
	ChunkMaxChars  int
	GapSeconds     float64
	MaxDuration    float64
}

// DefaultOptions returns 5 moments, 30s chunks with 5s overlap, 1000 chars, 10s gap, 90s cap.
func DefaultOptions() Options {
	return Options{
		MaxMoments:     5,
		ChunkSeconds:   30,
		OverlapSeconds: 5,
		ChunkMaxChars:  1000,
		GapSeconds:     10,
		MaxDuration:    90,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxMoments <= 0 {
		o.MaxMoments = d.MaxMoments
	}
	if o.ChunkSeconds <= 0 {
		o.ChunkSeconds = d.ChunkSeconds
	}
	if o.OverlapSeconds < 0 || o.OverlapSeconds >= o.ChunkSeconds {
		o.OverlapSeconds = d.OverlapSeconds
	}
	if o.ChunkMaxChars <= 0 {
		o.ChunkMaxChars = d.ChunkMaxChars
	}
	if o.GapSeconds < 0 {
		o.GapSeconds = d.GapSeconds
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = d.MaxDuration
	}
	return o
}

// Derive prefers AI moments and falls back to keyword-ranked transcript chunks, then merges.
func Derive(ai []Moment, segments []domain.TranscriptSegment, keywords []string, opts Options) []Moment {
	opts = opts.withDefaults()
	var picked []Moment
	if valid := topAI(ai, opts.MaxMoments); len(valid) > 0 {
		picked = valid
	} else {
		picked = RankChunks(Chunk(segments, opts), keywords, opts.MaxMoments)
	}
	return Merge(picked, opts.GapSeconds, opts.MaxDuration)
}

func topAI(ai []Moment, n int) []Moment {
	out := make([]Moment, 0, len(ai))
	for _, m := range ai {
		if math.IsNaN(m.Start) || math.IsNaN(m.End) || m.Start < 0 || m.End <= m.Start {
			continue
		}
		m.Confidence = clampConfidence(m.Confidence)
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Chunk groups transcript segments into overlapping windows. A window holds the segments
// starting inside it, up to ChunkMaxChars of text.
func Chunk(segments []domain.TranscriptSegment, opts Options) []Moment {
	opts = opts.withDefaults()
	if len(segments) == 0 {
		return nil
	}
	segs := append([]domain.TranscriptSegment(nil), segments...)
	sort.SliceStable(segs, func(i, j int) bool { return segs[i].Start < segs[j].Start })

	step := opts.ChunkSeconds - opts.OverlapSeconds
	last := segs[len(segs)-1].Start

	var chunks []Moment
	for windowStart := segs[0].Start; windowStart <= last; windowStart += step {
		windowEnd := windowStart + opts.ChunkSeconds
		var text strings.Builder
		chunk := Moment{Start: -1}
		for _, s := range segs {
			if s.Start < windowStart || s.Start >= windowEnd {
				continue
			}
			if text.Len() > 0 && text.Len()+1+len(s.Text) > opts.ChunkMaxChars {
				break
			}
			if chunk.Start < 0 {
				chunk.Start = s.Start
			}
			if text.Len() > 0 {
				text.WriteByte(' ')
			}
			text.WriteString(s.Text)
			chunk.End = math.Max(chunk.End, s.End())
		}
		if chunk.Start < 0 {
			continue
		}
		desc := text.String()
		if len(desc) > opts.ChunkMaxChars {
			desc = desc[:opts.ChunkMaxChars]
		}
		if chunk.End <= chunk.Start {
			chunk.End = chunk.Start + 1
		}
		chunk.Description = desc
		chunks = append(chunks, chunk)
	}
	return chunks
}

// RankChunks keeps the n chunks with the most keyword matches. Chunks without a match are
// dropped. Confidence is the match count relative to the best chunk.
func RankChunks(chunks []Moment, keywords []string, n int) []Moment {
	type scored struct {
		m       Moment
		count   int
		matched []string
	}
	var ranked []scored
	best := 0
	for _, c := range chunks {
		lower := strings.ToLower(c.Description)
		count := 0
		var matched []string
		for _, kw := range keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if k := strings.Count(lower, kw); k > 0 {
				count += k
				matched = append(matched, kw)
			}
		}
		if count == 0 {
			continue
		}
		if count > best {
			best = count
		}
		ranked = append(ranked, scored{m: c, count: count, matched: matched})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].m.Start < ranked[j].m.Start
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	out := make([]Moment, len(ranked))
	for i, r := range ranked {
		m := r.m
		m.Confidence = float64(r.count) / float64(best)
		m.Label = "Mentions " + strings.Join(r.matched, ", ")
		out[i] = m
	}
	return out
}

// Merge sorts moments by start and joins neighbours whose gap is at most gap seconds.
// A merged moment keeps the max end and confidence and concatenates labels and descriptions.
// Afterwards every moment longer than maxDuration is cut to exactly maxDuration.
func Merge(in []Moment, gap, maxDuration float64) []Moment {
	if len(in) == 0 {
		return nil
	}
	sorted := append([]Moment(nil), in...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	merged := []Moment{sorted[0]}
	for _, next := range sorted[1:] {
		cur := &merged[len(merged)-1]
		if next.Start-cur.End <= gap {
			cur.End = math.Max(cur.End, next.End)
			cur.Confidence = math.Max(cur.Confidence, next.Confidence)
			cur.Label = joinText(cur.Label, next.Label, " / ")
			cur.Description = joinText(cur.Description, next.Description, " ")
			continue
		}
		merged = append(merged, next)
	}

	if maxDuration > 0 {
		for i := range merged {
			if merged[i].Duration() > maxDuration {
				merged[i].End = merged[i].Start + maxDuration
			}
		}
	}
	return merged
}

func joinText(a, b, sep string) string {
	switch {
	case a == "":
		return b
	case b == "" || a == b:
		return a
	default:
		return a + sep + b
	}
}

func clampConfidence(c float64) float64 {
	if math.IsNaN(c) || c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// ToDomain converts moments for persistence.
func ToDomain(ms []Moment) []domain.Moment {
	out := make([]domain.Moment, len(ms))
	for i, m := range ms {
		out[i] = domain.Moment{
			StartSeconds: m.Start,
			EndSeconds:   m.End,
			Confidence:   m.Confidence,
			Label:        m.Label,
			Description:  m.Description,
		}
	}
	return out
}
