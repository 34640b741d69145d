package tally_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq-io/tally-client/pkg/tally"
)

type recordingTokenClearer struct {
	cleared int
}

func (r *recordingTokenClearer) ClearAccessToken() {
	r.cleared++
}

func TestClassify_Unauthorized(t *testing.T) {
	t.Parallel()

	clearer := &recordingTokenClearer{}
	classifier := tally.NewClassifier(clearer)

	apiErr := classifier.Classify(http.StatusUnauthorized, nil, nil)

	assert.Equal(t, tally.ErrorUnauthorized, apiErr.Kind)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Your session has expired. Please log in again.", apiErr.Message)
	assert.Equal(t, 1, clearer.cleared)
}

func TestClassify_UnauthorizedNilClearer(t *testing.T) {
	t.Parallel()

	classifier := tally.NewClassifier(nil)

	apiErr := classifier.Classify(http.StatusUnauthorized, nil, nil)
	assert.Equal(t, tally.ErrorUnauthorized, apiErr.Kind)
}

func TestClassify_Forbidden(t *testing.T) {
	t.Parallel()

	classifier := tally.NewClassifier(nil)

	apiErr := classifier.Classify(http.StatusForbidden, nil, []byte(`{"error":"nope"}`))

	assert.Equal(t, tally.ErrorForbidden, apiErr.Kind)
	assert.Equal(t, "You do not have permission to perform this action.", apiErr.Message)
}

func TestClassify_NotFound(t *testing.T) {
	t.Parallel()

	classifier := tally.NewClassifier(nil)

	apiErr := classifier.Classify(http.StatusNotFound, nil, nil)

	assert.Equal(t, tally.ErrorNotFound, apiErr.Kind)
	assert.Equal(t, "The requested resource was not found. Check the server address and your connection.", apiErr.Message)
}

func TestClassify_ValidationFieldOrder(t *testing.T) {
	t.Parallel()

	classifier := tally.NewClassifier(nil)
	body := []byte(`{"errors":[{"field":"name","message":"is required"},{"field":"price","message":"must be positive"}]}`)

	apiErr := classifier.Classify(http.StatusUnprocessableEntity, nil, body)

	assert.Equal(t, tally.ErrorValidation, apiErr.Kind)
	assert.Equal(t, "name: is required\nprice: must be positive", apiErr.Message)
}

func TestClassify_ValidationGenericMessage(t *testing.T) {
	t.Parallel()

	classifier := tally.NewClassifier(nil)

	apiErr := classifier.Classify(http.StatusUnprocessableEntity, nil, []byte(`{}`))

	assert.Equal(t, "The submitted data failed validation.", apiErr.Message)
}

func TestClassify_RateLimitedHeaderWins(t *testing.T) {
	t.Parallel()

	classifier := tally.NewClassifier(nil)
	header := http.Header{}
	header.Set("Retry-After", "17")

	apiErr := classifier.Classify(http.StatusTooManyRequests, header, []byte(`{"retryAfter":99}`))

	require.Equal(t, tally.ErrorRateLimited, apiErr.Kind)
	assert.Equal(t, 17, apiErr.RetryAfter)
	assert.Equal(t, "Too many requests. Please retry in 17 seconds.", apiErr.Message)
}

func TestClassify_RateLimitedBodyFallback(t *testing.T) {
	t.Parallel()

	classifier := tally.NewClassifier(nil)

	apiErr := classifier.Classify(http.StatusTooManyRequests, nil, []byte(`{"retryAfter":42}`))

	assert.Equal(t, 42, apiErr.RetryAfter)
}

func TestClassify_RateLimitedDefault(t *testing.T) {
	t.Parallel()

	classifier := tally.NewClassifier(nil)

	apiErr := classifier.Classify(http.StatusTooManyRequests, nil, nil)

	assert.Equal(t, 60, apiErr.RetryAfter)
	assert.Equal(t, "Too many requests. Please retry in 60 seconds.", apiErr.Message)
}

func TestClassify_RateLimitedBadHeader(t *testing.T) {
	t.Parallel()

	classifier := tally.NewClassifier(nil)
	header := http.Header{}
	header.Set("Retry-After", "soon")

	apiErr := classifier.Classify(http.StatusTooManyRequests, header, []byte(`{"retryAfter":5}`))

	assert.Equal(t, 5, apiErr.RetryAfter)
}

func TestClassify_ServerError(t *testing.T) {
	t.Parallel()

	classifier := tally.NewClassifier(nil)

	for _, status := range []int{500, 502, 503} {
		apiErr := classifier.Classify(status, nil, nil)
		assert.Equal(t, tally.ErrorServer, apiErr.Kind)
		assert.Equal(t, status, apiErr.Status)
		assert.Equal(t, "The server encountered an error. Please try again later.", apiErr.Message)
	}
}

func TestClassify_UnknownWithBodyMessage(t *testing.T) {
	t.Parallel()

	classifier := tally.NewClassifier(nil)
	body := []byte(`{"error":"Conflict detected","details":[{"message":"SKU already exists"}]}`)

	apiErr := classifier.Classify(http.StatusConflict, nil, body)

	assert.Equal(t, tally.ErrorUnknown, apiErr.Kind)
	assert.Equal(t, "Conflict detected\nSKU already exists", apiErr.Message)
}

func TestClassify_UnknownFallbackMessage(t *testing.T) {
	t.Parallel()

	classifier := tally.NewClassifier(nil)

	apiErr := classifier.Classify(http.StatusTeapot, nil, []byte("not json"))

	assert.Equal(t, tally.ErrorUnknown, apiErr.Kind)
	assert.Equal(t, "418: I'm a teapot", apiErr.Message)
}
