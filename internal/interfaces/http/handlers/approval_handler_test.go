package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestApprovalHandler_AdminApprovesAndRejects(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "root@school.test", "admin", nil)
	s.signup(t, "ada@school.test", "student", studentMeta("Physics"))
	s.signup(t, "bob@school.test", "student", studentMeta("Biology"))
	admin := s.login(t, "root@school.test")

	rec := s.do(t, http.MethodGet, "/api/v1/approvals/pending", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	require.Len(t, body["items"], 2)
	require.EqualValues(t, 2, body["meta"].(map[string]interface{})["totalCount"])

	ada := s.profileOf(t, "ada@school.test")
	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/approve", ada.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"status":"APPROVED"`)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/approve", ada.ID), admin, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "IllegalTransition")

	bob := s.profileOf(t, "bob@school.test")
	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/reject", bob.ID), admin, map[string]string{"reason": ""})
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "IllegalTransition")
	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/reject", bob.ID), admin, nil)
	require.Equal(t, http.StatusConflict, rec.Code, "a missing body reads as an empty reason")
	require.Contains(t, rec.Body.String(), "IllegalTransition")
	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/reject", bob.ID), admin, []int{1})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/reject", bob.ID), admin, map[string]string{"reason": "wrong class level"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "wrong class level")

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/approvals/%s/history", bob.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode(t, rec)["entries"], 1)
}

func TestApprovalHandler_TeacherScope(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "root@school.test", "admin", nil)
	s.signup(t, "tom@school.test", "teacher", map[string]interface{}{"subject_expertise": []string{"Physics"}})
	s.signup(t, "ada@school.test", "student", studentMeta("Physics"))
	s.signup(t, "bob@school.test", "student", studentMeta("Biology"))
	admin := s.login(t, "root@school.test")
	teacher := s.login(t, "tom@school.test")

	// still pending: the teacher cannot review yet
	rec := s.do(t, http.MethodGet, "/api/v1/approvals/pending", teacher, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	tom := s.profileOf(t, "tom@school.test")
	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/approve", tom.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// the same token now sees the approved role, read from the store
	rec = s.do(t, http.MethodGet, "/api/v1/approvals/pending", teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode(t, rec)["items"], 1)

	bob := s.profileOf(t, "bob@school.test")
	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/approve", bob.ID), teacher, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Contains(t, rec.Body.String(), "you are not authorized")

	ada := s.profileOf(t, "ada@school.test")
	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/approve", ada.ID), teacher, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/approvals/pending?role=teacher", teacher, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestApprovalHandler_Bulk(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "root@school.test", "admin", nil)
	admin := s.login(t, "root@school.test")

	var ids []string
	for i := 1; i <= 3; i++ {
		email := fmt.Sprintf("s%d@school.test", i)
		s.signup(t, email, "student", studentMeta("Math"))
		ids = append(ids, s.profileOf(t, email).ID.String())
	}
	missing := uuid.New().String()

	rec := s.do(t, http.MethodPost, "/api/v1/approvals/bulk/approve", admin, map[string]interface{}{
		"ids": []string{ids[0], missing, ids[1]},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode(t, rec)
	require.Equal(t, []interface{}{ids[0], ids[1]}, body["succeeded"])
	failed := body["failed"].([]interface{})
	require.Len(t, failed, 1)
	require.Equal(t, missing, failed[0].(map[string]interface{})["id"])
	require.Equal(t, "NotFound", failed[0].(map[string]interface{})["kind"])

	rec = s.do(t, http.MethodPost, "/api/v1/approvals/bulk/reject", admin, map[string]interface{}{
		"ids": []string{ids[0], ids[2]}, "reason": "duplicate",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body = decode(t, rec)
	require.Equal(t, []interface{}{ids[2]}, body["succeeded"])
	require.Equal(t, "IllegalTransition", body["failed"].([]interface{})[0].(map[string]interface{})["kind"])

	rec = s.do(t, http.MethodPost, "/api/v1/approvals/bulk/approve", admin, map[string]interface{}{"ids": []string{}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApprovalHandler_BadRequests(t *testing.T) {
	s := newTestServer(t)
	s.signup(t, "root@school.test", "admin", nil)
	admin := s.login(t, "root@school.test")

	rec := s.do(t, http.MethodPost, "/api/v1/approvals/not-a-uuid/approve", admin, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/v1/approvals/%s/approve", uuid.New()), admin, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/approvals/pending?role=wizard", admin, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/approvals/pending", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
