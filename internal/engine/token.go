package engine

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"uk.co.dudmesh.herald/internal/model"
)

type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictReject  Verdict = "reject"
)

// Decision tokens travel as inline-button callback data, which Telegram caps
// at 64 bytes.
const maxTokenLength = 64

const (
	verbApprove = "a"
	verbReject  = "r"
)

// EncodeDecisionToken packs a verdict, row token and post id into callback
// data. The post id is base64url-encoded so it can never contain the "."
// delimiter, which keeps the encoding unambiguous for any producer-assigned
// id (naive delimiter splitting breaks on ids containing the delimiter).
func EncodeDecisionToken(verdict Verdict, rowToken int64, postID string) (string, error) {
	verb := verbApprove
	if verdict == VerdictReject {
		verb = verbReject
	}

	token := verb + "." + strconv.FormatInt(rowToken, 10) + "." +
		base64.RawURLEncoding.EncodeToString([]byte(postID))
	if len(token) > maxTokenLength {
		return "", fmt.Errorf("%w: post id %q too long for a decision token", model.ErrorInvalidRecord, postID)
	}

	return token, nil
}

// DecodeDecisionToken is the inverse of EncodeDecisionToken. Tokens that
// fail to decode are treated as stale or forged.
func DecodeDecisionToken(token string) (Verdict, int64, string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", 0, "", model.ErrorStaleDecision
	}

	var verdict Verdict
	switch parts[0] {
	case verbApprove:
		verdict = VerdictApprove
	case verbReject:
		verdict = VerdictReject
	default:
		return "", 0, "", model.ErrorStaleDecision
	}

	rowToken, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || rowToken <= 0 {
		return "", 0, "", model.ErrorStaleDecision
	}

	postID, err := base64.RawURLEncoding.DecodeString(parts[2])
	if err != nil {
		return "", 0, "", model.ErrorStaleDecision
	}

	return verdict, rowToken, string(postID), nil
}

func claimKey(rowToken int64, postID string) string {
	return strconv.FormatInt(rowToken, 10) + "." + postID
}
