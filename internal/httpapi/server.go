// Package httpapi exposes the session manager over HTTP. Clients send
// lifecycle commands and answers as JSON and poll a mailbox for what the game
// tells them.
//
// The API does not authenticate callers: a participant is whoever claims its
// id. Private prompts and mailbox feeds are keyed by participant id, so the
// server must sit behind something that vouches for that id.
package httpapi

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/suderio/ultramafia/internal/engine"
	"github.com/suderio/ultramafia/internal/session"
	"github.com/suderio/ultramafia/internal/solicit"
)

// Lifecycle is the part of the session manager the API drives.
type Lifecycle interface {
	Submit(ctx context.Context, cmd session.Command, room engine.RoomID, who engine.Participant) (*engine.Session, error)
	Session(room engine.RoomID) (*engine.Session, error)
	SessionByID(id engine.SessionID) (*engine.Session, bool)
}

// Answers receives what clients choose.
type Answers interface {
	SubmitAction(session engine.SessionID, actor engine.Seat, action engine.Action) error
	SubmitBallot(pollID string, voter engine.Seat, option string) error
	VoterSeat(pollID string, id engine.ParticipantID) (engine.Seat, error)
	SubmitFinalWords(session engine.SessionID, seat engine.Seat, text string) error
	Pending(session engine.SessionID) solicit.Pending
}

// NewServer builds the gin engine serving every route.
func NewServer(lc Lifecycle, answers Answers, box *Mailbox) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.POST("/rooms/:room/session", newCommandHandler(lc, session.CommandCreate))
	r.DELETE("/rooms/:room/session", newCommandHandler(lc, session.CommandStop))
	r.GET("/rooms/:room/session", newGetSessionHandler(lc))
	r.POST("/rooms/:room/members", newCommandHandler(lc, session.CommandJoin))
	r.DELETE("/rooms/:room/members/:participant", newLeaveHandler(lc))
	r.POST("/rooms/:room/start", newCommandHandler(lc, session.CommandStart))

	r.GET("/sessions/:session/prompts", newPromptsHandler(lc, answers))
	r.POST("/sessions/:session/actions", newActionHandler(answers))
	r.POST("/sessions/:session/final-words", newFinalWordsHandler(answers))
	r.POST("/polls/:poll/ballots", newBallotHandler(answers))

	r.GET("/mailbox/:recipient", newMailboxHandler(box))
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("http request")
	}
}
