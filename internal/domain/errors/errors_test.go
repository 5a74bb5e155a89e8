package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Constructors(t *testing.T) {
	notFound := NotFound("missing")
	assert.Equal(t, http.StatusNotFound, notFound.Status)
	assert.Equal(t, string(KindNotFound), notFound.Code)
	assert.ErrorIs(t, notFound, ErrNotFound)

	badReq := BadRequest("bad request")
	assert.Equal(t, http.StatusBadRequest, badReq.Status)
	assert.Equal(t, string(KindInvalidInput), badReq.Code)

	unauth := Unauthorized("unauthorized")
	assert.Equal(t, http.StatusUnauthorized, unauth.Status)
	assert.Equal(t, string(KindNotAuthenticated), unauth.Code)

	forbidden := Forbidden("forbidden")
	assert.Equal(t, http.StatusForbidden, forbidden.Status)
	assert.Equal(t, string(KindForbidden), forbidden.Code)

	internal := InternalError(stderrors.New("db down"))
	assert.Equal(t, http.StatusInternalServerError, internal.Status)
	assert.Equal(t, string(KindInternal), internal.Code)
	assert.Equal(t, "db down", internal.Error())
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		kind Kind
	}{
		{nil, ""},
		{ErrNotFound, KindNotFound},
		{fmt.Errorf("wrapped: %w", ErrIllegalTransition), KindIllegalTransition},
		{fmt.Errorf("%w: %v", ErrPartialCommit, ErrNotFound), KindPartialCommit},
		{stderrors.Join(ErrInconsistentRecord, ErrUnknownRole), KindInconsistentRecord},
		{stderrors.New("boom"), KindInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, KindOf(tc.err), "%v", tc.err)
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(ErrConcurrentModification))
	assert.True(t, Retryable(Unavailable(stderrors.New("connection refused"))))
	assert.False(t, Retryable(ErrPartialCommit))
	assert.False(t, Retryable(fmt.Errorf("%w: %v", ErrPartialCommit, ErrProviderUnavailable)))
	assert.False(t, Retryable(ErrForbidden))
	assert.False(t, Retryable(nil))
}

func TestUnavailable(t *testing.T) {
	assert.Nil(t, Unavailable(nil))
	assert.Same(t, ErrNotFound, Unavailable(ErrNotFound))

	err := Unavailable(stderrors.New("dial tcp: refused"))
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Contains(t, err.Error(), "refused")
}

func TestFromError(t *testing.T) {
	app := FromError(fmt.Errorf("%w: cannot approve from APPROVED", ErrIllegalTransition))
	assert.Equal(t, http.StatusConflict, app.Status)
	assert.Equal(t, string(KindIllegalTransition), app.Code)
	assert.Equal(t, ReasonFor(KindIllegalTransition), app.Message)

	direct := Forbidden("nope")
	assert.Same(t, direct, FromError(fmt.Errorf("ctx: %w", direct)))

	assert.Equal(t, http.StatusInternalServerError, FromError(stderrors.New("x")).Status)
	assert.Equal(t, http.StatusAccepted, FromError(ErrPartialCommit).Status)
}

func TestReasonFor_EveryKindHasText(t *testing.T) {
	for _, k := range kindTable {
		assert.NotEqual(t, "internal error", ReasonFor(k.kind), k.kind)
	}
}
