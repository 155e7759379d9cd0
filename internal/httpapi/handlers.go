package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/session"
)

// ParticipantRequest identifies who sends a lifecycle command.
type ParticipantRequest struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name"`
}

// ActionRequest answers a night prompt.
type ActionRequest struct {
	Seat   int    `json:"seat" binding:"required,min=1"`
	Kind   string `json:"kind" binding:"required"`
	Target int    `json:"target"`
}

// BallotRequest answers a poll. Seat may be omitted when Participant is given.
type BallotRequest struct {
	Seat        int    `json:"seat"`
	Participant string `json:"participant"`
	Option      string `json:"option" binding:"required"`
}

// FinalWordsRequest carries the last message of a killed member.
type FinalWordsRequest struct {
	Seat int    `json:"seat" binding:"required,min=1"`
	Text string `json:"text" binding:"required"`
}

func newCommandHandler(lc Lifecycle, cmd session.Command) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ParticipantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortBadRequest(c, err)
			return
		}
		who := engine.Participant{ID: engine.ParticipantID(req.ID), Name: req.Name}

		s, err := lc.Submit(c.Request.Context(), cmd, engine.RoomID(c.Param("room")), who)
		if err != nil {
			abortWithError(c, err)
			return
		}
		status := http.StatusOK
		if cmd == session.CommandCreate {
			status = http.StatusCreated
		}
		respond(c, status, s)
	}
}

func newLeaveHandler(lc Lifecycle) gin.HandlerFunc {
	return func(c *gin.Context) {
		who := engine.Participant{ID: engine.ParticipantID(c.Param("participant"))}
		s, err := lc.Submit(c.Request.Context(), session.CommandLeave, engine.RoomID(c.Param("room")), who)
		if err != nil {
			abortWithError(c, err)
			return
		}
		respond(c, http.StatusOK, s)
	}
}

func respond(c *gin.Context, status int, s *engine.Session) {
	if s == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(status, sessionView(s))
}

func newGetSessionHandler(lc Lifecycle) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := lc.Session(engine.RoomID(c.Param("room")))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, sessionView(s))
	}
}

func newPromptsHandler(lc Lifecycle, answers Answers) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := engine.SessionID(c.Param("session"))
		if _, ok := lc.SessionByID(id); !ok {
			abortWithError(c, engine.ErrNoSession)
			return
		}
		viewer := engine.ParticipantID(c.Query("participant"))
		c.JSON(http.StatusOK, promptsView(answers.Pending(id), viewer))
	}
}

func newActionHandler(answers Answers) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ActionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortBadRequest(c, err)
			return
		}
		kind, err := engine.ParseActionKind(req.Kind)
		if err != nil {
			abortBadRequest(c, err)
			return
		}
		if kind != engine.ActionNone && req.Target <= 0 {
			abortBadRequest(c, errors.New(kind.String()+" needs a target"))
			return
		}

		action := engine.NewAction(kind, engine.Seat(req.Target))
		if err := answers.SubmitAction(engine.SessionID(c.Param("session")), engine.Seat(req.Seat), action); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

func newBallotHandler(answers Answers) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req BallotRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortBadRequest(c, err)
			return
		}
		poll := c.Param("poll")
		seat := engine.Seat(req.Seat)
		if seat <= 0 {
			if req.Participant == "" {
				abortBadRequest(c, errors.New("seat or participant is required"))
				return
			}
			var err error
			if seat, err = answers.VoterSeat(poll, engine.ParticipantID(req.Participant)); err != nil {
				abortWithError(c, err)
				return
			}
		}

		if err := answers.SubmitBallot(poll, seat, strings.ToLower(req.Option)); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

func newFinalWordsHandler(answers Answers) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req FinalWordsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			abortBadRequest(c, err)
			return
		}
		if err := answers.SubmitFinalWords(engine.SessionID(c.Param("session")), engine.Seat(req.Seat), req.Text); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusAccepted)
	}
}

func newMailboxHandler(box *Mailbox) gin.HandlerFunc {
	return func(c *gin.Context) {
		var after int64
		if raw := c.Query("after"); raw != "" {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || n < 0 {
				c.AbortWithStatusJSON(http.StatusBadRequest, ErrorBody{Error: "after must be a non-negative integer", Kind: "invalid_request"})
				return
			}
			after = n
		}
		c.JSON(http.StatusOK, box.Read(c.Param("recipient"), after))
	}
}
