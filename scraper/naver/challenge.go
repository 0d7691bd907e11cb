package naver

import "bytes"

// DefaultChallengeMarker is the text Naver Land serves instead of JSON when it
// decides the caller is automated traffic.
const DefaultChallengeMarker = "비정상적인 접근"

// ChallengeDetector decides whether a 200 response body is actually a
// bot-defense page.
type ChallengeDetector func(body []byte) bool

// MarkerDetector matches a literal marker anywhere in the body.
func MarkerDetector(marker string) ChallengeDetector {
	if marker == "" {
		marker = DefaultChallengeMarker
	}
	m := []byte(marker)
	return func(body []byte) bool {
		return bytes.Contains(body, m)
	}
}
