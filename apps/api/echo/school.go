package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/class"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/core/user"
)

type schoolDeps struct {
	classSvc   class.Service
	teacherSvc teacher.Service
	studentSvc student.Service
	usrSvc     user.Service
	validate   *validator.Validate
}

type schoolApi struct {
	schoolDeps
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps schoolDeps) {
	api := schoolApi{schoolDeps: deps}

	// teachers
	tg := g.Group("/teachers", jwt)
	tg.POST("", api.createTeacher, adminMiddleware())
	tg.GET("", api.queryTeachers, teacherMiddleware())
	tg.GET("/:id", api.retrieveTeacher, teacherMiddleware())
	tg.DELETE("/:id", api.destroyTeacher, adminMiddleware())

	// students
	sg := g.Group("/students", jwt)
	sg.POST("", api.createStudent, adminMiddleware())
	sg.GET("", api.queryStudents, teacherMiddleware())
	sg.GET("/:id", api.retrieveStudent)
	sg.PUT("/:id", api.updateStudentProfile)
	sg.DELETE("/:id", api.destroyStudent, adminMiddleware())

	// classes
	cg := g.Group("/classes", jwt)
	cg.POST("", api.createClass, adminMiddleware())
	cg.GET("", api.queryClasses, teacherMiddleware())
	cg.POST("/reconcile", api.reconcileClasses, adminMiddleware())
	cg.GET("/:id", api.retrieveClass, teacherMiddleware())
	cg.PUT("/:id", api.updateClass, adminMiddleware())
	cg.DELETE("/:id", api.destroyClass, adminMiddleware())
	cg.GET("/:id/teachers", api.queryClassTeachers, teacherMiddleware())
	cg.GET("/:id/students", api.queryClassStudents, teacherMiddleware())
	cg.PUT("/:id/teachers/:teacherID", api.assignTeacher, adminMiddleware())
	cg.PUT("/:id/students/:studentID", api.assignStudent, adminMiddleware())
	cg.DELETE("/:id/students/:studentID", api.removeStudent, adminMiddleware())
}

// Teacher handlers

func (api *schoolApi) createTeacher(ctx echo.Context) error {
	var data teacher.NewTeacher
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTeacher")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	tch, err := api.teacherSvc.Create(data, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "creating teacher")
	}
	return ctx.JSON(http.StatusCreated, tch)
}

func (api *schoolApi) queryTeachers(ctx echo.Context) error {
	teachers, err := api.teacherSvc.QueryAll()
	if err != nil {
		return errors.Wrap(err, "querying teachers")
	}
	if teachers == nil {
		teachers = []teacher.Teacher{}
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *schoolApi) retrieveTeacher(ctx echo.Context) error {
	tch, err := api.teacherSvc.GetByID(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, tch)
}

func (api *schoolApi) destroyTeacher(ctx echo.Context) error {
	if err := api.teacherSvc.Delete(ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Student handlers

func (api *schoolApi) createStudent(ctx echo.Context) error {
	var data student.NewStudent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewStudent")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	st, err := api.studentSvc.Create(data, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "creating student")
	}
	return ctx.JSON(http.StatusCreated, st)
}

func (api *schoolApi) queryStudents(ctx echo.Context) error {
	students, err := api.studentSvc.QueryAll()
	if err != nil {
		return errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

// retrieveStudent serves staff and the student's own portal.
func (api *schoolApi) retrieveStudent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	id := ctx.Param("id")
	if !(claims.IsAdmin || claims.IsTeacher || claims.IsLibrarian || claims.Subject == id) {
		return errHttpNotFound
	}
	st, err := api.studentSvc.GetByID(id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, st)
}

// updateStudentProfile lets a student edit their own record; admins may edit any.
func (api *schoolApi) updateStudentProfile(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	id := ctx.Param("id")
	if !(claims.IsAdmin || claims.Subject == id) {
		return errHttpForbidden
	}

	var data student.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	st, err := api.studentSvc.UpdateProfile(id, data)
	if err != nil {
		return errors.Wrap(err, "updating student profile")
	}
	return ctx.JSON(http.StatusOK, st)
}

// destroyStudent unenrolls the student from their class before removing the
// record and account.
func (api *schoolApi) destroyStudent(ctx echo.Context) error {
	id := ctx.Param("id")
	if err := api.classSvc.RemoveStudent(id); err != nil {
		return err
	}
	if err := api.studentSvc.Delete(id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Class handlers

func (api *schoolApi) createClass(ctx echo.Context) error {
	var data class.NewClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	cls, err := api.classSvc.Create(data, ctxUsr.ID)
	if err != nil {
		return errors.Wrap(err, "creating class")
	}
	return ctx.JSON(http.StatusCreated, cls)
}

func (api *schoolApi) queryClasses(ctx echo.Context) error {
	classes, err := api.classSvc.QueryAll()
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	if classes == nil {
		classes = []class.Class{}
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *schoolApi) retrieveClass(ctx echo.Context) error {
	cls, err := api.classSvc.GetByID(ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *schoolApi) updateClass(ctx echo.Context) error {
	var data class.UpdateClass
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateClass")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	cls, err := api.classSvc.Update(ctx.Param("id"), data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *schoolApi) destroyClass(ctx echo.Context) error {
	if err := api.classSvc.Delete(ctx.Param("id")); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) queryClassTeachers(ctx echo.Context) error {
	teachers, err := api.classSvc.Teachers(ctx.Param("id"))
	if err != nil {
		return err
	}
	if teachers == nil {
		teachers = []teacher.Teacher{}
	}
	return ctx.JSON(http.StatusOK, teachers)
}

func (api *schoolApi) queryClassStudents(ctx echo.Context) error {
	students, err := api.classSvc.Students(ctx.Param("id"))
	if err != nil {
		return err
	}
	if students == nil {
		students = []student.Student{}
	}
	return ctx.JSON(http.StatusOK, students)
}

func (api *schoolApi) assignTeacher(ctx echo.Context) error {
	cls, err := api.classSvc.AssignTeacher(ctx.Param("id"), ctx.Param("teacherID"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *schoolApi) assignStudent(ctx echo.Context) error {
	cls, err := api.classSvc.AssignStudent(ctx.Param("id"), ctx.Param("studentID"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *schoolApi) removeStudent(ctx echo.Context) error {
	st, err := api.studentSvc.GetByID(ctx.Param("studentID"))
	if err != nil {
		return err
	}
	if !st.Enrolled() || st.ClassID.String != ctx.Param("id") {
		return errHttpNotFound
	}
	if err = api.classSvc.RemoveStudent(st.ID); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) reconcileClasses(ctx echo.Context) error {
	repaired, err := api.classSvc.Reconcile()
	if err != nil {
		return errors.Wrap(err, "reconciling enrollments")
	}
	return ctx.JSON(http.StatusOK, echo.Map{"repaired": repaired})
}
