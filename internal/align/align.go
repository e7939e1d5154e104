// Package align implements the Alignment Engine: merging transcript
// words with diarization segments into speaker-attributed utterances,
// relabeling raw speaker identifiers, computing per-speaker
// statistics, detecting overlapping speech, and emitting RTTM.
package align

import (
	"sort"
	"strings"

	"github.com/subraAntoine/apilexia/internal/models"
)

// Options carries the optional pre-processing parameters accepted by
// Align: gap merging and a minimum segment duration filter.
type Options struct {
	MergeGapsMS   int
	MinSegmentMS  int
}

// Align runs the full pipeline: filter, merge, relabel, then produce
// utterances via the precise or proportional path depending on
// whether words are available. Segments passed in carry backend-native
// labels; the returned segments and utterances carry public letters.
func Align(text string, words []models.Word, segments []models.SpeakerSegment, opts Options) (utterances []models.Utterance, relabeled []models.SpeakerSegment) {
	sorted := sortSegments(segments)

	if opts.MinSegmentMS > 0 {
		sorted = filterShort(sorted, opts.MinSegmentMS)
	}
	if opts.MergeGapsMS > 0 {
		sorted = mergeGaps(sorted, opts.MergeGapsMS)
	}

	mapping := RelabelMapping(sorted)
	relabeled = applyMapping(sorted, mapping)

	if len(words) > 0 {
		utterances = alignPrecise(words, relabeled)
	} else {
		utterances = alignProportional(text, relabeled)
	}

	return utterances, relabeled
}

func sortSegments(segments []models.SpeakerSegment) []models.SpeakerSegment {
	out := make([]models.SpeakerSegment, len(segments))
	copy(out, segments)
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartMS < out[j].StartMS })
	return out
}

func filterShort(segments []models.SpeakerSegment, minMS int) []models.SpeakerSegment {
	out := make([]models.SpeakerSegment, 0, len(segments))
	for _, s := range segments {
		if s.EndMS-s.StartMS >= minMS {
			out = append(out, s)
		}
	}
	return out
}

// mergeGaps coalesces consecutive same-speaker segments separated by
// a gap no larger than gapMS, taking the weaker of the two
// confidences for the merged span.
func mergeGaps(segments []models.SpeakerSegment, gapMS int) []models.SpeakerSegment {
	if len(segments) == 0 {
		return segments
	}
	out := make([]models.SpeakerSegment, 0, len(segments))
	current := segments[0]
	for _, next := range segments[1:] {
		if next.Speaker == current.Speaker && next.StartMS-current.EndMS <= gapMS {
			current.EndMS = next.EndMS
			if next.Confidence < current.Confidence {
				current.Confidence = next.Confidence
			}
			continue
		}
		out = append(out, current)
		current = next
	}
	out = append(out, current)
	return out
}

// RelabelMapping builds the deterministic raw-label -> public-letter
// mapping by scanning segments, already sorted by start time, and
// assigning the next unused letter on first encounter of a label.
func RelabelMapping(sortedSegments []models.SpeakerSegment) map[string]string {
	mapping := make(map[string]string)
	next := 0
	for _, s := range sortedSegments {
		if _, ok := mapping[s.Speaker]; !ok {
			mapping[s.Speaker] = letterFor(next)
			next++
		}
	}
	return mapping
}

func letterFor(index int) string {
	// A, B, ..., Z, AA, AB, ... in the unlikely event of >26 speakers.
	letters := "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	if index < 26 {
		return string(letters[index])
	}
	return letterFor(index/26-1) + string(letters[index%26])
}

func applyMapping(segments []models.SpeakerSegment, mapping map[string]string) []models.SpeakerSegment {
	out := make([]models.SpeakerSegment, len(segments))
	for i, s := range segments {
		out[i] = s
		out[i].Speaker = mapping[s.Speaker]
	}
	return out
}

// alignPrecise implements the word-overlap path: for each segment,
// gather every word whose interval overlaps it.
func alignPrecise(words []models.Word, segments []models.SpeakerSegment) []models.Utterance {
	utterances := make([]models.Utterance, 0, len(segments))
	for _, s := range segments {
		var parts []string
		for _, w := range words {
			if w.StartMS < s.EndMS && w.EndMS > s.StartMS {
				parts = append(parts, w.Text)
			}
		}
		utterances = append(utterances, models.Utterance{
			Speaker:    s.Speaker,
			StartMS:    s.StartMS,
			EndMS:      s.EndMS,
			Text:       strings.TrimSpace(strings.Join(parts, " ")),
			Confidence: s.Confidence,
		})
	}
	return utterances
}

// alignProportional implements the token-distribution path used when
// no word-level timestamps are available: each segment is assigned a
// share of the whitespace-split transcript proportional to its
// duration, with any remainder appended to the final utterance.
func alignProportional(text string, segments []models.SpeakerSegment) []models.Utterance {
	tokens := strings.Fields(text)
	utterances := make([]models.Utterance, len(segments))

	if len(segments) == 0 {
		return utterances
	}

	totalDuration := 0
	for _, s := range segments {
		totalDuration += s.EndMS - s.StartMS
	}

	if totalDuration <= 0 || len(tokens) == 0 {
		for i, s := range segments {
			utterances[i] = models.Utterance{
				Speaker:    s.Speaker,
				StartMS:    s.StartMS,
				EndMS:      s.EndMS,
				Confidence: s.Confidence,
			}
		}
		return utterances
	}

	cursor := 0
	for i, s := range segments {
		duration := s.EndMS - s.StartMS
		n := int((float64(duration) / float64(totalDuration)) * float64(len(tokens)))
		if n < 1 {
			n = 1
		}
		end := cursor + n
		if end > len(tokens) {
			end = len(tokens)
		}
		if i == len(segments)-1 {
			end = len(tokens)
		}

		utterances[i] = models.Utterance{
			Speaker:    s.Speaker,
			StartMS:    s.StartMS,
			EndMS:      s.EndMS,
			Text:       strings.Join(tokens[cursor:end], " "),
			Confidence: s.Confidence,
		}
		cursor = end
	}

	return utterances
}

// DetectOverlaps finds every pair of distinct-speaker segments whose
// intervals intersect, clipped to the intersection.
func DetectOverlaps(segments []models.SpeakerSegment) []models.OverlapSegment {
	var overlaps []models.OverlapSegment
	for i := 0; i < len(segments); i++ {
		for j := i + 1; j < len(segments); j++ {
			a, b := segments[i], segments[j]
			if a.Speaker == b.Speaker {
				continue
			}
			start := max(a.StartMS, b.StartMS)
			end := min(a.EndMS, b.EndMS)
			if start < end {
				overlaps = append(overlaps, models.OverlapSegment{
					Speakers:   []string{a.Speaker, b.Speaker},
					StartMS:    start,
					EndMS:      end,
					DurationMS: end - start,
				})
			}
		}
	}
	return overlaps
}

// SpeakerStats computes the per-speaker summary over a relabeled
// segment list: total time, segment count, average duration, and the
// share of total speaking time across all speakers.
func SpeakerStats(segments []models.SpeakerSegment) []models.SpeakerStat {
	type acc struct {
		duration int
		count    int
	}
	order := []string{}
	bySpeaker := map[string]*acc{}

	for _, s := range segments {
		a, ok := bySpeaker[s.Speaker]
		if !ok {
			a = &acc{}
			bySpeaker[s.Speaker] = a
			order = append(order, s.Speaker)
		}
		a.duration += s.EndMS - s.StartMS
		a.count++
	}

	total := 0
	for _, a := range bySpeaker {
		total += a.duration
	}

	stats := make([]models.SpeakerStat, 0, len(order))
	for _, speaker := range order {
		a := bySpeaker[speaker]
		avg := 0
		if a.count > 0 {
			avg = a.duration / a.count
		}
		pct := 0.0
		if total > 0 {
			pct = round2(100 * float64(a.duration) / float64(total))
		}
		stats = append(stats, models.SpeakerStat{
			Speaker:              speaker,
			TotalDurationMS:      a.duration,
			NumSegments:          a.count,
			AvgSegmentDurationMS: avg,
			Percentage:           pct,
		})
	}
	return stats
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
