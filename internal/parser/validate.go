package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidLog wraps every validation failure so callers can branch on the
// class of error while still surfacing the specific reason to the user.
var ErrInvalidLog = errors.New("invalid DCS log")

// dcsSignatures are markers at least one of which appears in every log the
// DCS client writes. Content matching none of them is not a DCS log.
var dcsSignatures = []string{
	"DCS/",
	"=== Log opened",
	"APP (Main): DCS",
	"loading mission from:",
	"loadMission",
	"MissionSpawn:",
	"connected to server",
}

// ValidateLog checks that content looks like a DCS client log. The three
// checks are independent; the first failure's reason is returned.
func ValidateLog(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("%w: file is empty", ErrInvalidLog)
	}

	hasSignature := false
	for _, sig := range dcsSignatures {
		if strings.Contains(content, sig) {
			hasSignature = true
			break
		}
	}
	if !hasSignature {
		return fmt.Errorf("%w: file does not appear to be a valid DCS log", ErrInvalidLog)
	}

	if !reTimestampSearch.MatchString(content) {
		return fmt.Errorf("%w: no valid DCS timestamp format found", ErrInvalidLog)
	}

	return nil
}

// reTimestampSearch matches the DCS timestamp format anywhere in the file,
// unlike reTimestamp which anchors to the start of a line.
var reTimestampSearch = regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\.\d{3}`)

// FileHash returns the content-addressed identity of a raw log file:
// the SHA-256 digest of its UTF-8 bytes, hex encoded. Used purely for
// deduplication; collision resistance matters, secrecy does not.
func FileHash(content string) string {
	digest := sha256.Sum256([]byte(content))
	return hex.EncodeToString(digest[:])
}
