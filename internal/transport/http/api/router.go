package apihttp

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"fplpilot/internal/autopilot"
	"fplpilot/internal/decision"
	"fplpilot/internal/logger"
	"fplpilot/internal/market"
	"fplpilot/internal/season"
	"fplpilot/internal/store/decisionlog"

	"github.com/gin-gonic/gin"
)

// Autopilot is the slice of autopilot.Service the API drives.
type Autopilot interface {
	Season() string
	State(ctx context.Context, user string) (*season.State, error)
	Draft(ctx context.Context, user string, opts autopilot.Options) (autopilot.DraftReport, error)
	Advance(ctx context.Context, user string, opts autopilot.Options) (autopilot.Report, error)
	Regenerate(ctx context.Context, user string, opts autopilot.Options) (autopilot.Report, error)
	Redraft(ctx context.Context, user string, opts autopilot.Options) (autopilot.RedraftResult, error)
	RefreshPoints(ctx context.Context, user string) (int, error)
	SuggestLineup(ctx context.Context, user string) (autopilot.Lineup, error)
	Market(ctx context.Context, n int) ([]market.Scored, error)
}

// CallLog serves recorded oracle exchanges.
type CallLog interface {
	ListCalls(ctx context.Context, q decisionlog.Query) ([]decision.CallRecord, error)
	CallsByTrace(ctx context.Context, traceID string) ([]decision.CallRecord, error)
}

var userPattern = regexp.MustCompile(`^[A-Za-z0-9_.@-]{1,64}$`)

type Router struct {
	pilot Autopilot
	calls CallLog
}

func NewRouter(pilot Autopilot, calls CallLog) *Router {
	return &Router{pilot: pilot, calls: calls}
}

// Register mounts the routes under group (normally /api).
func (r *Router) Register(group *gin.RouterGroup) {
	group.GET("/market", r.handleMarket)
	group.GET("/oracle/calls", r.handleCalls)
	group.GET("/oracle/traces/:trace", r.handleTrace)

	user := group.Group("/users/:user", r.requireUser)
	user.GET("/state", r.handleState)
	user.GET("/log", r.handleLog)
	user.GET("/lineup", r.handleLineup)
	user.POST("/draft", r.handleDraft)
	user.POST("/advance", r.handleAdvance)
	user.POST("/regenerate", r.handleRegenerate)
	user.POST("/redraft", r.handleRedraft)
	user.POST("/refresh-points", r.handleRefresh)
}

type actionRequest struct {
	Instructions string `json:"instructions"`
}

// StateView is the state document plus derived fields.
type StateView struct {
	User        string        `json:"user"`
	Season      string        `json:"season"`
	Phase       season.Phase  `json:"phase"`
	TotalPoints int           `json:"total_points"`
	State       *season.State `json:"state"`
}

func (r *Router) requireUser(c *gin.Context) {
	if !userPattern.MatchString(c.Param("user")) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	c.Next()
}

func (r *Router) options(c *gin.Context) (autopilot.Options, bool) {
	var req actionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
			return autopilot.Options{}, false
		}
	}
	return autopilot.Options{Instructions: strings.TrimSpace(req.Instructions)}, true
}

func (r *Router) handleState(c *gin.Context) {
	user := c.Param("user")
	st, err := r.pilot.State(c.Request.Context(), user)
	if err != nil {
		r.fail(c, "state", err)
		return
	}
	c.JSON(http.StatusOK, StateView{
		User:        user,
		Season:      r.pilot.Season(),
		Phase:       st.Phase(),
		TotalPoints: st.TotalPoints(),
		State:       st,
	})
}

func (r *Router) handleLog(c *gin.Context) {
	st, err := r.pilot.State(c.Request.Context(), c.Param("user"))
	if err != nil {
		r.fail(c, "log", err)
		return
	}
	entries := st.Log
	if gw, _ := strconv.Atoi(c.Query("gw")); gw > 0 {
		e, ok := st.EntryFor(gw)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no entry for gameweek"})
			return
		}
		entries = []season.Entry{e}
	}
	if entries == nil {
		entries = []season.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "total_points": st.TotalPoints()})
}

func (r *Router) handleLineup(c *gin.Context) {
	lu, err := r.pilot.SuggestLineup(c.Request.Context(), c.Param("user"))
	if err != nil {
		r.fail(c, "lineup", err)
		return
	}
	c.JSON(http.StatusOK, lu)
}

func (r *Router) handleMarket(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	pos := market.Position(strings.ToUpper(strings.TrimSpace(c.Query("position"))))
	n := limit
	if pos != "" {
		n = 0
	}
	scored, err := r.pilot.Market(c.Request.Context(), n)
	if err != nil {
		r.fail(c, "market", err)
		return
	}
	if pos != "" {
		filtered := make([]market.Scored, 0, len(scored))
		for _, s := range scored {
			if s.Position == pos {
				filtered = append(filtered, s)
			}
		}
		scored = filtered
		if limit > 0 && len(scored) > limit {
			scored = scored[:limit]
		}
	}
	c.JSON(http.StatusOK, gin.H{"players": scored})
}

func (r *Router) handleDraft(c *gin.Context) {
	opts, ok := r.options(c)
	if !ok {
		return
	}
	rep, err := r.pilot.Draft(c.Request.Context(), c.Param("user"), opts)
	if err != nil {
		r.fail(c, "draft", err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (r *Router) handleAdvance(c *gin.Context) {
	opts, ok := r.options(c)
	if !ok {
		return
	}
	rep, err := r.pilot.Advance(c.Request.Context(), c.Param("user"), opts)
	if err != nil {
		r.fail(c, "advance", err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (r *Router) handleRegenerate(c *gin.Context) {
	opts, ok := r.options(c)
	if !ok {
		return
	}
	rep, err := r.pilot.Regenerate(c.Request.Context(), c.Param("user"), opts)
	if err != nil {
		r.fail(c, "regenerate", err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (r *Router) handleRedraft(c *gin.Context) {
	opts, ok := r.options(c)
	if !ok {
		return
	}
	res, err := r.pilot.Redraft(c.Request.Context(), c.Param("user"), opts)
	if err != nil {
		r.fail(c, "redraft", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (r *Router) handleRefresh(c *gin.Context) {
	n, err := r.pilot.RefreshPoints(c.Request.Context(), c.Param("user"))
	if err != nil {
		r.fail(c, "refresh-points", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (r *Router) handleCalls(c *gin.Context) {
	if r.calls == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decision log disabled"})
		return
	}
	gw, _ := strconv.Atoi(c.Query("gw"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	calls, err := r.calls.ListCalls(c.Request.Context(), decisionlog.Query{
		User:   c.Query("user"),
		Season: c.DefaultQuery("season", r.pilot.Season()),
		Kind:   c.Query("kind"),
		GW:     gw,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		r.fail(c, "oracle calls", err)
		return
	}
	if calls == nil {
		calls = []decision.CallRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"calls": calls})
}

func (r *Router) handleTrace(c *gin.Context) {
	if r.calls == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decision log disabled"})
		return
	}
	calls, err := r.calls.CallsByTrace(c.Request.Context(), c.Param("trace"))
	if err != nil {
		r.fail(c, "oracle trace", err)
		return
	}
	if len(calls) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "trace not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": calls})
}

func (r *Router) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Errorf("[api] %s failed ip=%s err=%v", op, c.ClientIP(), err)
	} else {
		logger.Debugf("[api] %s rejected ip=%s err=%v", op, c.ClientIP(), err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, autopilot.ErrAlreadyDrafted),
		errors.Is(err, autopilot.ErrRedraftNotGW1),
		errors.Is(err, autopilot.ErrFutureEntries),
		errors.Is(err, autopilot.ErrNoSquad):
		return http.StatusConflict
	case errors.Is(err, autopilot.ErrNoLegalSelection):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}
