package slack

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedHeader(secret string, at time.Time, body []byte) http.Header {
	ts := strconv.FormatInt(at.Unix(), 10)
	h := http.Header{}
	h.Set(HeaderTimestamp, ts)
	h.Set(HeaderSignature, Sign(secret, ts, body))
	return h
}

func TestVerifier(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	body := []byte(`{"type":"event_callback"}`)

	v := NewVerifier("s3cret")
	v.now = func() time.Time { return now }

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, v.Verify(signedHeader("s3cret", now, body), body))
	})

	t.Run("wrong secret", func(t *testing.T) {
		err := v.Verify(signedHeader("other", now, body), body)
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("tampered body", func(t *testing.T) {
		err := v.Verify(signedHeader("s3cret", now, body), []byte(`{"type":"x"}`))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("stale", func(t *testing.T) {
		err := v.Verify(signedHeader("s3cret", now.Add(-6*time.Minute), body), body)
		assert.ErrorIs(t, err, ErrStaleTimestamp)
	})

	t.Run("future within window", func(t *testing.T) {
		require.NoError(t, v.Verify(signedHeader("s3cret", now.Add(4*time.Minute), body), body))
	})

	t.Run("missing headers", func(t *testing.T) {
		assert.ErrorIs(t, v.Verify(http.Header{}, body), ErrMissingSignature)
	})

	t.Run("malformed signature", func(t *testing.T) {
		h := signedHeader("s3cret", now, body)
		h.Set(HeaderSignature, "v1=abc")
		assert.ErrorIs(t, v.Verify(h, body), ErrInvalidSignature)
		h.Set(HeaderSignature, "v0=zz")
		assert.ErrorIs(t, v.Verify(h, body), ErrInvalidSignature)
	})
}

func TestParseEnvelope(t *testing.T) {
	t.Run("url verification", func(t *testing.T) {
		env, err := ParseEnvelope([]byte(`{"type":"url_verification","challenge":"abc"}`))
		require.NoError(t, err)
		assert.Equal(t, TypeURLVerification, env.Type)
		assert.Equal(t, "abc", env.Challenge)

		_, ok, err := env.Mention()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("app mention", func(t *testing.T) {
		env, err := ParseEnvelope([]byte(`{"type":"event_callback","event_id":"Ev1","event":{"type":"app_mention","channel":"C1","user":"U1","text":"<@UBOT> hi","ts":"1.2","thread_ts":"1.0"}}`))
		require.NoError(t, err)
		m, ok, err := env.Mention()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "Ev1", env.EventID)
		assert.Equal(t, "C1", m.Channel)
		assert.Equal(t, "1.0", m.Thread())
	})

	t.Run("top level mention is its own thread", func(t *testing.T) {
		assert.Equal(t, "5.5", MentionEvent{TS: "5.5"}.Thread())
	})

	t.Run("other event", func(t *testing.T) {
		env, err := ParseEnvelope([]byte(`{"type":"event_callback","event":{"type":"message","channel":"C1","ts":"1"}}`))
		require.NoError(t, err)
		_, ok, err := env.Mention()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ParseEnvelope([]byte(`not json`))
		assert.Error(t, err)
		_, err = ParseEnvelope([]byte(`{}`))
		assert.Error(t, err)
	})
}

func TestStripMentions(t *testing.T) {
	assert.Equal(t, "record this please", StripMentions("<@U012AB>  record this\n please"))
	assert.Equal(t, "hey and", StripMentions("hey <@U1|bot> and <@W2>"))
	assert.Equal(t, "", StripMentions("<@U1>"))
}
