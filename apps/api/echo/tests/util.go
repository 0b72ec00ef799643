package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	. "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/class"
	"github.com/trezcool/shule/core/library"
	"github.com/trezcool/shule/core/scorecard"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/email"
	"github.com/trezcool/shule/storage/database/inmem"
	"github.com/trezcool/shule/tests"
)

var (
	usrRepo user.Repository
	stRepo  student.Repository
	tchRepo teacher.Repository
	clsRepo class.Repository
	bkRepo  library.Repository
	scRepo  scorecard.Repository

	usrSvc user.Service

	errMissingToken     = httpErr{Error: "missing or malformed jwt"}
	errPermissionDenied = httpErr{Error: "permission denied"}
)

func setup(t *testing.T) Server {
	t.Helper()

	// set up DB & repos
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() failed: %v", err)
	}
	usrRepo = inmemdb.NewUserRepository(db)
	stRepo = inmemdb.NewStudentRepository(db)
	tchRepo = inmemdb.NewTeacherRepository(db)
	clsRepo = inmemdb.NewClassRepository(db)
	bkRepo = inmemdb.NewBookRepository(db)
	scRepo = inmemdb.NewScorecardRepository(db)

	// set up services
	conf := testutil.NewConfig()
	logger := testutil.NewLogger()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc = user.NewService(usrRepo, mailSvc, conf)
	stSvc := student.NewService(stRepo, usrSvc)
	clsSvc := class.NewService(clsRepo, tchRepo, stRepo, logger)
	tchSvc := teacher.NewService(tchRepo, usrSvc, clsSvc, logger)
	libSvc := library.NewService(bkRepo, stRepo, mailSvc, logger)
	scSvc := scorecard.NewService(scRepo, stRepo)

	// set up validators
	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up server
	return NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		UserSvc:        usrSvc,
		StudentSvc:     stSvc,
		TeacherSvc:     tchSvc,
		ClassSvc:       clsSvc,
		LibrarySvc:     libSvc,
		ScorecardSvc:   scSvc,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

type httpErr struct {
	Error string `json:"error"`
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, usr user.User) string {
	t.Helper()

	claims := GetUserClaims(usr)
	token, err := GenerateToken(claims)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()

	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()

	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decoding response %q failed: %v", rec.Body.String(), err)
	}
}

func checkCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()

	if rec.Code != want {
		t.Fatalf("code = %d, want %d; body: %s", rec.Code, want, rec.Body.String())
	}
}

func checkError(t *testing.T, rec *httptest.ResponseRecorder, code int, want httpErr) {
	t.Helper()

	if rec.Code != code {
		t.Fatalf("code = %d, want %d; body: %s", rec.Code, code, rec.Body.String())
	}
	var got httpErr
	decodeInto(t, rec, &got)
	if got != want {
		t.Errorf("error = %+v, want %+v", got, want)
	}
}

// createAdmin registers an admin account and returns it with a ready token.
func createAdmin(t *testing.T) (user.User, string) {
	t.Helper()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin01", "admin@test.cd", "Sup3r$ecret", []string{user.RoleAdmin}, true)
	return admin, getToken(t, admin)
}

// createTeacherUser registers a teacher account plus record sharing the same ID.
func createTeacherUser(t *testing.T, name, uname, email string, roles ...string) (teacher.Teacher, string) {
	t.Helper()

	usr := testutil.CreateUser(t, usrRepo, name, uname, email, "Sup3r$ecret", append([]string{user.RoleTeacher}, roles...), true)
	now := usr.CreatedAt
	tch, err := tchRepo.CreateTeacher(teacher.Teacher{ID: usr.ID, Name: name, Email: email, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("createTeacherUser() failed: %v", err)
	}
	return tch, getToken(t, usr)
}

// createStudentUser registers a student account plus record sharing the same ID.
func createStudentUser(t *testing.T, name, uname, email string) (student.Student, string) {
	t.Helper()

	usr := testutil.CreateUser(t, usrRepo, name, uname, email, "Sup3r$ecret", []string{user.RoleStudent}, true)
	now := usr.CreatedAt
	st, err := stRepo.CreateStudent(student.Student{ID: usr.ID, Name: name, Email: email, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("createStudentUser() failed: %v", err)
	}
	return st, getToken(t, usr)
}
