package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationRoom(t *testing.T) {
	tcases := []struct {
		name     string
		a        string
		b        string
		expected string
	}{
		{
			name:     "already sorted",
			a:        "U1",
			b:        "U2",
			expected: "U1_U2",
		},
		{
			name:     "reversed",
			a:        "U2",
			b:        "U1",
			expected: "U1_U2",
		},
		{
			name:     "non-numeric ids",
			a:        "zed",
			b:        "alice",
			expected: "alice_zed",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, ConversationRoom(tc.a, tc.b), "expected room id to match")
			assert.Equal(t, ConversationRoom(tc.a, tc.b), ConversationRoom(tc.b, tc.a),
				"expected room id to be symmetric in its arguments")
		})
	}
}

func TestNewTempId(t *testing.T) {
	id := NewTempId()
	assert.True(t, strings.HasPrefix(id, tempIdPrefix), "expected temp id to carry the temp prefix")
	assert.True(t, IsTempId(id), "expected IsTempId to recognize a generated id")

	other := NewTempId()
	assert.NotEqual(t, id, other, "expected consecutive temp ids to differ")
}

func TestIsTempId(t *testing.T) {
	assert.False(t, IsTempId("m100"), "expected a server id to not be temporary")
	assert.True(t, IsTempId("temp-1748430000000-abc"), "expected a prefixed id to be temporary")
}
