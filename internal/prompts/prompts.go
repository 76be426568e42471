package prompts

import (
	"fmt"
	"strings"
)

// ============================================================================
// Clip analysis prompts
// ============================================================================

// AnalysisSystemPrompt defines the role and output contract for clip analysis.
const AnalysisSystemPrompt = `You are a sports video analyst. You read the transcript of a sports video and decide how well it serves a search intent.

Rules:
- Answer with a single JSON object and nothing else.
- "relevance" is a number between 0 and 1.
- "summary" is at most two sentences.
- "keyMoments" lists at most 5 highlights with "start" and "end" in seconds from the start of the video, a short "label", a one-sentence "description" and a "confidence" between 0 and 1.
- Only use timestamps that appear in the transcript. Never invent moments.`

// analysisUserTemplate is filled by AnalysisUserPrompt.
const analysisUserTemplate = `Sport: %s
Search keywords: %s

Video title: %s
Video description: %s

Transcript (each line starts with its offset in seconds):
%s

Respond with JSON shaped like:
{"relevance": 0.0, "summary": "", "keyMoments": [{"start": 0, "end": 0, "label": "", "description": "", "confidence": 0.0}]}`

// MaxTranscriptChars caps the transcript sent to the model.
const MaxTranscriptChars = 12000

// AnalysisUserPrompt renders the user message for one video.
// Parameters:
//   - sport: sport of the query definition.
//   - keywords: search keywords.
//   - title, description: video metadata.
//   - transcript: timestamped transcript lines, truncated to MaxTranscriptChars.
// Returns:
//   - string: prompt text.
func AnalysisUserPrompt(sport string, keywords []string, title, description, transcript string) string {
	if len(transcript) > MaxTranscriptChars {
		transcript = transcript[:MaxTranscriptChars]
	}
	if len(description) > 1000 {
		description = description[:1000]
	}
	return fmt.Sprintf(analysisUserTemplate, sport, strings.Join(keywords, ", "), title, description, transcript)
}
