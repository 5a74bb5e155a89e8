package handlers

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"school-onboarding.backend/internal/domain/entities"
	domainerrors "school-onboarding.backend/internal/domain/errors"
	"school-onboarding.backend/internal/interfaces/http/middleware"
	"school-onboarding.backend/internal/interfaces/http/response"
)

// reasonInput is the body of reject and delete requests
type reasonInput struct {
	Reason string `json:"reason"`
}

// bindReason reads an optional reason. A missing body reads as an empty
// reason so the lifecycle guard reports it like {"reason":""}.
func bindReason(c *gin.Context) (string, bool) {
	var input reasonInput
	if err := c.ShouldBindJSON(&input); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, domainerrors.BadRequest("Invalid request body"))
		return "", false
	}
	return input.Reason, true
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, domainerrors.BadRequest("Invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

func requireActor(c *gin.Context) (entities.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok || !actor.IsAuthenticated() {
		response.Error(c, domainerrors.Unauthorized("Authentication required"))
		return entities.AnonymousActor(), false
	}
	return actor, true
}

func requireAccount(c *gin.Context) (*entities.AccountRef, bool) {
	account, ok := middleware.GetAccount(c)
	if !ok {
		response.Error(c, domainerrors.Unauthorized("Authentication required"))
		return nil, false
	}
	return account, true
}

// queryList reads a repeated or comma separated query parameter
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func queryInt(c *gin.Context, key string) int {
	n, _ := strconv.Atoi(c.Query(key))
	return n
}
