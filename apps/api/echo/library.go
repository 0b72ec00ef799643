package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/library"
	"github.com/trezcool/shule/core/user"
)

type libraryApi struct {
	svc      library.Service
	usrSvc   user.Service
	validate *validator.Validate
}

func registerLibraryAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc library.Service, usrSvc user.Service, validate *validator.Validate) {
	api := libraryApi{
		svc:      svc,
		usrSvc:   usrSvc,
		validate: validate,
	}

	bg := g.Group("/books", jwt)
	bg.POST("", api.create, librarianMiddleware())
	bg.GET("", api.query)
	bg.GET("/overdue", api.queryOverdue, librarianMiddleware())
	bg.POST("/overdue/notify", api.notifyOverdue, librarianMiddleware())
	bg.GET("/:id", api.retrieve)
	bg.PUT("/:id", api.update, librarianMiddleware())
	bg.DELETE("/:id", api.destroy, librarianMiddleware())
	bg.POST("/:id/issue/:studentID", api.issue, librarianMiddleware())
	bg.POST("/:id/return/:studentID", api.returnBook, librarianMiddleware())
}

func (api *libraryApi) create(ctx echo.Context) error {
	var data library.NewBook
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBook")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	bk, err := api.svc.Add(data, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "adding book")
	}
	return ctx.JSON(http.StatusCreated, bk)
}

func (api *libraryApi) query(ctx echo.Context) error {
	books, err := api.svc.QueryAll()
	if err != nil {
		return errors.Wrap(err, "querying books")
	}
	if books == nil {
		books = []library.Book{}
	}
	return ctx.JSON(http.StatusOK, books)
}

func (api *libraryApi) retrieve(ctx echo.Context) error {
	bk, err := api.svc.GetByID(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, bk)
}

func (api *libraryApi) update(ctx echo.Context) error {
	var data library.UpdateBook
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateBook")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	bk, err := api.svc.Update(ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, bk)
}

func (api *libraryApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *libraryApi) issue(ctx echo.Context) error {
	bk, err := api.svc.Issue(ctx.Param("id"), ctx.Param("studentID"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, bk)
}

func (api *libraryApi) returnBook(ctx echo.Context) error {
	bk, penaltyDays, err := api.svc.Return(ctx.Param("id"), ctx.Param("studentID"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ReturnResponse{Book: bk, PenaltyDays: penaltyDays})
}

func (api *libraryApi) queryOverdue(ctx echo.Context) error {
	overdue, err := api.svc.Overdue()
	if err != nil {
		return errors.Wrap(err, "querying overdue loans")
	}
	if overdue == nil {
		overdue = []library.OverdueLoan{}
	}
	return ctx.JSON(http.StatusOK, overdue)
}

func (api *libraryApi) notifyOverdue(ctx echo.Context) error {
	if err := api.svc.NotifyOverdue(); err != nil {
		return errors.Wrap(err, "notifying overdue loans")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: "Overdue notices are on their way."})
}

type ReturnResponse struct {
	Book        library.Book `json:"book"`
	PenaltyDays int          `json:"penalty_days"`
}
