package align

import (
	"fmt"
	"strings"

	"github.com/subraAntoine/apilexia/internal/models"
)

// RTTM renders segments as Rich Transcription Time Marked lines, the
// one place times are emitted in seconds rather than milliseconds.
func RTTM(audioID string, segments []models.SpeakerSegment) string {
	var b strings.Builder
	for _, s := range segments {
		startSec := float64(s.StartMS) / 1000
		durSec := float64(s.EndMS-s.StartMS) / 1000
		fmt.Fprintf(&b, "SPEAKER %s 1 %.3f %.3f <NA> <NA> %s <NA> <NA>\n", audioID, startSec, durSec, s.Speaker)
	}
	return b.String()
}
