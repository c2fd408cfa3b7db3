package controller

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"codegame/internal/contest/service"
	gatewaymw "codegame/internal/gateway/middleware"
	gatewaysvc "codegame/internal/gateway/service"
	"codegame/internal/model"
	pkgerrors "codegame/pkg/errors"
	"codegame/pkg/utils/logger"
	"codegame/pkg/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const defaultMaxCodeBytes = 256 << 10

// ContestController serves the contestant API.
type ContestController struct {
	holder       *service.Holder
	auth         *gatewaysvc.AuthService
	maxCodeBytes int64
}

// NewContestController creates a controller. maxCodeBytes <= 0 selects the default.
func NewContestController(holder *service.Holder, auth *gatewaysvc.AuthService, maxCodeBytes int64) *ContestController {
	if maxCodeBytes <= 0 {
		maxCodeBytes = defaultMaxCodeBytes
	}
	return &ContestController{holder: holder, auth: auth, maxCodeBytes: maxCodeBytes}
}

// Mount registers the contestant routes. authed guards the per-contestant endpoints.
func (h *ContestController) Mount(api gin.IRoutes, authed gin.HandlerFunc) {
	api.POST("/add", h.Add)
	api.GET("/problems", authed, h.Problems)
	api.GET("/content/:file", h.Content)
	api.POST("/submit", authed, h.Submit)
	api.GET("/restore", authed, h.Restore)
	api.POST("/finish", authed, h.Finish)
	api.GET("/standings", h.Standings)
}

// Known reports whether id is registered in the current contest.
func (h *ContestController) Known(id string) bool {
	_, ok := h.holder.Current().Contestant(id)
	return ok
}

// Add registers a contestant and issues its token.
func (h *ContestController) Add(c *gin.Context) {
	var req AddRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	engine := h.holder.Current()
	id, err := engine.Register(req.Name, req.Color)
	if err != nil {
		response.Error(c, err)
		return
	}
	token, err := h.auth.Issue(id)
	if err != nil {
		response.Error(c, err)
		return
	}
	standing, _ := engine.Contestant(id)
	response.Success(c, AddResponse{
		UID:   id,
		Name:  standing.Name,
		Token: token,
		Color: standing.Color,
	})
}

// Problems lists the contest problems while the contest runs.
func (h *ContestController) Problems(c *gin.Context) {
	engine := h.holder.Current()
	if engine.Progress() != model.ProgressInProgress {
		response.Error(c, pkgerrors.New(pkgerrors.ContestNotStarted))
		return
	}
	response.Success(c, engine.Problems())
}

// Content streams a problem statement PDF.
func (h *ContestController) Content(c *gin.Context) {
	name, ok := strings.CutSuffix(c.Param("file"), ".pdf")
	if !ok || name == "" {
		response.Error(c, pkgerrors.NotFoundError("problem statement"))
		return
	}
	problem, err := h.holder.Current().Problem(name)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, "application/pdf", problem.Content)
}

// Submit accepts a solution for judging.
func (h *ContestController) Submit(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxCodeBytes+64<<10)

	var form SubmitForm
	if err := c.ShouldBind(&form); err != nil {
		response.BadRequest(c, "Bad request")
		return
	}
	fileHeader, err := c.FormFile("code")
	if err != nil {
		response.BadRequest(c, "Bad request")
		return
	}
	if fileHeader.Size > h.maxCodeBytes {
		response.ErrorWithCode(c, pkgerrors.InvalidParams, "Code is too large")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, pkgerrors.Wrap(err, pkgerrors.SubmissionCreateFailed))
		return
	}
	defer file.Close()
	code, err := io.ReadAll(io.LimitReader(file, h.maxCodeBytes))
	if err != nil {
		response.Error(c, pkgerrors.Wrap(err, pkgerrors.SubmissionCreateFailed))
		return
	}

	view, err := h.holder.Current().Submit(c.Request.Context(), gatewaymw.ContestantID(c),
		strings.TrimSpace(form.Problem), strings.TrimSpace(form.Language), code)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, view)
}

// Restore rebuilds a contestant session.
func (h *ContestController) Restore(c *gin.Context) {
	view, err := h.holder.Current().Restore(gatewaymw.ContestantID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	logger.Info(c.Request.Context(), "session restored", zap.String("name", view.Name))
	response.Success(c, view)
}

// Finish lets a contestant end its attempt early.
func (h *ContestController) Finish(c *gin.Context) {
	engine := h.holder.Current()
	if err := engine.MarkFinished(gatewaymw.ContestantID(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// Standings returns the public scoreboard.
func (h *ContestController) Standings(c *gin.Context) {
	engine := h.holder.Current()
	response.Success(c, StandingsResponse{
		Progress:    engine.Progress(),
		Elapsed:     engine.Elapsed(),
		Contestants: engine.Standings(),
	})
}

// bindError reports the first failed field of a request body, or a plain bad request
// when the body could not be decoded at all.
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		field := verrs[0]
		return pkgerrors.ValidationError(strings.ToLower(field.Field()), field.Tag()).
			WithMessagef("invalid %s", strings.ToLower(field.Field()))
	}
	return pkgerrors.BadRequest("Bad request")
}
