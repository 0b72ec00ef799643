package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/scorecard"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/user"
)

type scorecardApi struct {
	svc        scorecard.Service
	studentSvc student.Service
	usrSvc     user.Service
	validate   *validator.Validate
}

func registerScorecardAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc scorecard.Service, studentSvc student.Service, usrSvc user.Service, validate *validator.Validate) {
	api := scorecardApi{
		svc:        svc,
		studentSvc: studentSvc,
		usrSvc:     usrSvc,
		validate:   validate,
	}

	sg := g.Group("/scorecards", jwt)
	sg.POST("", api.create, teacherMiddleware())
	sg.GET("", api.query, teacherMiddleware())
	sg.GET("/rankings", api.rankings, teacherMiddleware())
	sg.GET("/students/:studentID", api.queryForStudent)
	sg.GET("/:id", api.retrieve, teacherMiddleware())
	sg.PUT("/:id", api.update, teacherMiddleware())
	sg.DELETE("/:id", api.destroy, teacherMiddleware())
}

func (api *scorecardApi) create(ctx echo.Context) error {
	var data scorecard.NewScorecard
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewScorecard")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sc, err := api.svc.Add(data, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "adding scorecard")
	}
	return ctx.JSON(http.StatusCreated, sc)
}

func (api *scorecardApi) query(ctx echo.Context) error {
	cards, err := api.svc.QueryAll()
	if err != nil {
		return errors.Wrap(err, "querying scorecards")
	}
	if cards == nil {
		cards = []scorecard.Scorecard{}
	}
	return ctx.JSON(http.StatusOK, cards)
}

func (api *scorecardApi) rankings(ctx echo.Context) error {
	ranks, err := api.svc.Rankings()
	if err != nil {
		return errors.Wrap(err, "ranking students")
	}
	if ranks == nil {
		ranks = []scorecard.Rank{}
	}
	return ctx.JSON(http.StatusOK, ranks)
}

// queryForStudent serves staff and the student's own portal.
func (api *scorecardApi) queryForStudent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	studentID := ctx.Param("studentID")
	if !(claims.IsAdmin || claims.IsTeacher || claims.Subject == studentID) {
		return errHttpNotFound
	}

	cards, err := api.svc.ForStudent(studentID)
	if err != nil {
		return err
	}
	if cards == nil {
		cards = []scorecard.Scorecard{}
	}
	return ctx.JSON(http.StatusOK, cards)
}

func (api *scorecardApi) retrieve(ctx echo.Context) error {
	sc, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sc)
}

func (api *scorecardApi) update(ctx echo.Context) error {
	var data scorecard.UpdateScorecard
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateScorecard")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	sc, err := api.svc.Update(ctx.Param("id"), data, claims.Subject, claims.IsAdmin)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sc)
}

func (api *scorecardApi) destroy(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err = api.svc.Delete(ctx.Param("id"), claims.Subject, claims.IsAdmin); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}
