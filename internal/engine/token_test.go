package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"uk.co.dudmesh.herald/internal/model"
)

func TestDecisionTokenRoundTrip(t *testing.T) {
	assert := assert.New(t)

	tests := []struct {
		name     string
		verdict  Verdict
		rowToken int64
		postID   string
	}{
		{"approve", VerdictApprove, 2, "p1"},
		{"reject", VerdictReject, 17, "p1"},
		{"post id with underscores", VerdictApprove, 3, "camp_2024_07"},
		{"post id with the delimiter", VerdictApprove, 4, "a.b.c"},
		{"post id with unicode", VerdictReject, 5, "pöst→1"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			token, err := EncodeDecisionToken(tc.verdict, tc.rowToken, tc.postID)
			assert.Nil(err)
			assert.LessOrEqual(len(token), maxTokenLength)

			verdict, rowToken, postID, err := DecodeDecisionToken(token)
			assert.Nil(err)
			assert.Equal(tc.verdict, verdict)
			assert.Equal(tc.rowToken, rowToken)
			assert.Equal(tc.postID, postID)
		})
	}
}

func TestEncodeDecisionTokenRejectsOversizePostID(t *testing.T) {
	assert := assert.New(t)

	_, err := EncodeDecisionToken(VerdictApprove, 1, strings.Repeat("x", 64))
	assert.ErrorIs(err, model.ErrorInvalidRecord)
}

func TestDecodeDecisionTokenRejectsGarbage(t *testing.T) {
	assert := assert.New(t)

	tokens := []string{
		"",
		"a",
		"a.1",
		"x.1.cDE",          // unknown verb
		"a.zero.cDE",       // non-numeric row
		"a.-4.cDE",         // non-positive row
		"a.1.not*base64!",  // undecodable post id
		"approve_2_p1",     // legacy underscore format
		"a.1.cDE.trailing", // extra segment
	}

	for _, token := range tokens {
		_, _, _, err := DecodeDecisionToken(token)
		assert.ErrorIs(err, model.ErrorStaleDecision, "token %q", token)
	}
}
