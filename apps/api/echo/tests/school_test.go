package tests

import (
	"net/http"
	"testing"

	"github.com/trezcool/shule/core/class"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/tests"
)

func Test_schoolApi_teachers(t *testing.T) {
	app := setup(t)

	_, adminToken := createAdmin(t)
	_, tchToken := createTeacherUser(t, "Prof", "prof01", "prof@test.cd")
	_, stToken := createStudentUser(t, "Awe", "awe001", "awe@test.cd")

	// only admin registers teachers
	body := marchallObj(t, teacher.NewTeacher{
		Name:            "King",
		Email:           "king@test.cd",
		Password:        "Sup3r$ecret",
		PasswordConfirm: "Sup3r$ecret",
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/teachers", tchToken, body)
	app.ServeHTTP(rec, req)
	checkError(t, rec, http.StatusForbidden, errPermissionDenied)

	req, rec = newAuthRequest(http.MethodPost, "/v1/teachers", adminToken, body)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusCreated)
	var created teacher.Teacher
	decodeInto(t, rec, &created)
	if created.ID == "" {
		t.Error("createTeacher did not assign an ID")
	}
	// the account shares the record's ID and can log in
	usr, err := usrSvc.GetByID(created.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	if !usr.IsTeacher() {
		t.Errorf("teacher account roles = %v", usr.Roles)
	}

	// teachers may list, students may not
	req, rec = newAuthRequest(http.MethodGet, "/v1/teachers", tchToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
	var teachers []teacher.Teacher
	decodeInto(t, rec, &teachers)
	if len(teachers) != 2 {
		t.Errorf("queryTeachers returned %d, want 2", len(teachers))
	}

	req, rec = newAuthRequest(http.MethodGet, "/v1/teachers", stToken)
	app.ServeHTTP(rec, req)
	checkError(t, rec, http.StatusForbidden, errPermissionDenied)
}

func Test_schoolApi_teacherDestroy_unlinksClasses(t *testing.T) {
	app := setup(t)

	_, adminToken := createAdmin(t)
	tch, _ := createTeacherUser(t, "Prof", "prof01", "prof@test.cd")
	cls := testutil.CreateClass(t, clsRepo, "1A", 20)

	req, rec := newAuthRequest(http.MethodPut, "/v1/classes/"+cls.ID+"/teachers/"+tch.ID, adminToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	req, rec = newAuthRequest(http.MethodDelete, "/v1/teachers/"+tch.ID, adminToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusNoContent)

	refreshed, err := clsRepo.GetClassByID(cls.ID)
	if err != nil {
		t.Fatalf("GetClassByID() failed: %v", err)
	}
	if refreshed.HasTeacher(tch.ID) {
		t.Error("destroyTeacher left the class link behind")
	}
}

func Test_schoolApi_students(t *testing.T) {
	app := setup(t)

	_, adminToken := createAdmin(t)
	_, tchToken := createTeacherUser(t, "Prof", "prof01", "prof@test.cd")

	body := marchallObj(t, student.NewStudent{
		Name:            "Awe",
		Email:           "awe@test.cd",
		Password:        "Sup3r$ecret",
		PasswordConfirm: "Sup3r$ecret",
	})
	req, rec := newAuthRequest(http.MethodPost, "/v1/students", adminToken, body)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusCreated)
	var created student.Student
	decodeInto(t, rec, &created)

	// the new account can reach its own record but nobody else's
	usr, err := usrSvc.GetByID(created.ID)
	if err != nil {
		t.Fatalf("GetByID() failed: %v", err)
	}
	stToken := getToken(t, usr)

	req, rec = newAuthRequest(http.MethodGet, "/v1/students/"+created.ID, stToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	other, _ := createStudentUser(t, "King", "king01", "king@test.cd")
	req, rec = newAuthRequest(http.MethodGet, "/v1/students/"+other.ID, stToken)
	app.ServeHTTP(rec, req)
	checkError(t, rec, http.StatusNotFound, httpErr{Error: "not found"})

	// staff see any record
	req, rec = newAuthRequest(http.MethodGet, "/v1/students/"+other.ID, tchToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	// listing is staff-only
	req, rec = newAuthRequest(http.MethodGet, "/v1/students", stToken)
	app.ServeHTTP(rec, req)
	checkError(t, rec, http.StatusForbidden, errPermissionDenied)

	req, rec = newAuthRequest(http.MethodGet, "/v1/students", tchToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
	var students []student.Student
	decodeInto(t, rec, &students)
	if len(students) != 2 {
		t.Errorf("queryStudents returned %d, want 2", len(students))
	}

	// self profile update
	body = marchallObj(t, student.UpdateProfile{
		Name:    "Awe M",
		Phone:   "+243900000001",
		Address: "12 Av. Lumumba",
		Gender:  "m",
	})
	req, rec = newAuthRequest(http.MethodPut, "/v1/students/"+created.ID, stToken, body)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
	var updated student.Student
	decodeInto(t, rec, &updated)
	if updated.Phone != "+243900000001" {
		t.Errorf("updateProfile Phone = %s", updated.Phone)
	}

	// not someone else's
	req, rec = newAuthRequest(http.MethodPut, "/v1/students/"+other.ID, stToken, body)
	app.ServeHTTP(rec, req)
	checkError(t, rec, http.StatusForbidden, errPermissionDenied)
}

func Test_schoolApi_studentDestroy_unenrolls(t *testing.T) {
	app := setup(t)

	_, adminToken := createAdmin(t)
	st, _ := createStudentUser(t, "Awe", "awe001", "awe@test.cd")
	cls := testutil.CreateClass(t, clsRepo, "1A", 20)
	testutil.EnrollStudent(t, clsRepo, stRepo, cls.ID, st.ID)

	req, rec := newAuthRequest(http.MethodDelete, "/v1/students/"+st.ID, adminToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusNoContent)

	refreshed, err := clsRepo.GetClassByID(cls.ID)
	if err != nil {
		t.Fatalf("GetClassByID() failed: %v", err)
	}
	if refreshed.HasStudent(st.ID) {
		t.Error("destroyStudent left the roster entry behind")
	}
	if _, err = stRepo.GetStudentByID(st.ID); err == nil {
		t.Error("destroyStudent left the record behind")
	}
}

func Test_schoolApi_classes(t *testing.T) {
	app := setup(t)

	_, adminToken := createAdmin(t)
	_, tchToken := createTeacherUser(t, "Prof", "prof01", "prof@test.cd")

	// create: name bounds enforced
	req, rec := newAuthRequest(http.MethodPost, "/v1/classes", adminToken, marchallObj(t, class.NewClass{Name: "Grade One"}))
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusBadRequest)

	req, rec = newAuthRequest(http.MethodPost, "/v1/classes", adminToken, marchallObj(t, class.NewClass{Name: "1A"}))
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusCreated)
	var cls class.Class
	decodeInto(t, rec, &cls)
	if cls.Capacity != class.DefaultCapacity {
		t.Errorf("createClass Capacity = %d, want %d", cls.Capacity, class.DefaultCapacity)
	}

	// duplicate name
	req, rec = newAuthRequest(http.MethodPost, "/v1/classes", adminToken, marchallObj(t, class.NewClass{Name: "1A"}))
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusBadRequest)

	// teachers may browse but not create
	req, rec = newAuthRequest(http.MethodGet, "/v1/classes", tchToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)

	req, rec = newAuthRequest(http.MethodPost, "/v1/classes", tchToken, marchallObj(t, class.NewClass{Name: "1B"}))
	app.ServeHTTP(rec, req)
	checkError(t, rec, http.StatusForbidden, errPermissionDenied)

	// resize
	req, rec = newAuthRequest(http.MethodPut, "/v1/classes/"+cls.ID, adminToken, marchallObj(t, class.UpdateClass{Name: "1A", Capacity: 30}))
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
	decodeInto(t, rec, &cls)
	if cls.Capacity != 30 {
		t.Errorf("updateClass Capacity = %d, want 30", cls.Capacity)
	}
}

func Test_schoolApi_enrollment(t *testing.T) {
	app := setup(t)

	_, adminToken := createAdmin(t)
	tch, _ := createTeacherUser(t, "Prof", "prof01", "prof@test.cd")
	st, _ := createStudentUser(t, "Awe", "awe001", "awe@test.cd")
	cls := testutil.CreateClass(t, clsRepo, "1A", 20)
	cls2 := testutil.CreateClass(t, clsRepo, "1B", 20)

	// assign the teacher
	req, rec := newAuthRequest(http.MethodPut, "/v1/classes/"+cls.ID+"/teachers/"+tch.ID, adminToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
	// twice
	req, rec = newAuthRequest(http.MethodPut, "/v1/classes/"+cls.ID+"/teachers/"+tch.ID, adminToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusBadRequest)

	// enroll the student
	req, rec = newAuthRequest(http.MethodPut, "/v1/classes/"+cls.ID+"/students/"+st.ID, adminToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
	// one class per student
	req, rec = newAuthRequest(http.MethodPut, "/v1/classes/"+cls2.ID+"/students/"+st.ID, adminToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusBadRequest)

	// rosters
	req, rec = newAuthRequest(http.MethodGet, "/v1/classes/"+cls.ID+"/students", adminToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
	var students []student.Student
	decodeInto(t, rec, &students)
	if len(students) != 1 || students[0].ID != st.ID {
		t.Errorf("queryClassStudents = %+v, want [%s]", students, st.ID)
	}
	req, rec = newAuthRequest(http.MethodGet, "/v1/classes/"+cls.ID+"/teachers", adminToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
	var teachers []teacher.Teacher
	decodeInto(t, rec, &teachers)
	if len(teachers) != 1 || teachers[0].ID != tch.ID {
		t.Errorf("queryClassTeachers = %+v, want [%s]", teachers, tch.ID)
	}

	// a full class cannot be deleted
	req, rec = newAuthRequest(http.MethodDelete, "/v1/classes/"+cls.ID, adminToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusBadRequest)

	// unenroll: the class in the path must be the student's
	req, rec = newAuthRequest(http.MethodDelete, "/v1/classes/"+cls2.ID+"/students/"+st.ID, adminToken)
	app.ServeHTTP(rec, req)
	checkError(t, rec, http.StatusNotFound, httpErr{Error: "not found"})

	req, rec = newAuthRequest(http.MethodDelete, "/v1/classes/"+cls.ID+"/students/"+st.ID, adminToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusNoContent)

	req, rec = newAuthRequest(http.MethodDelete, "/v1/classes/"+cls.ID, adminToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusNoContent)
}

func Test_schoolApi_reconcile(t *testing.T) {
	app := setup(t)

	_, adminToken := createAdmin(t)
	st, _ := createStudentUser(t, "Awe", "awe001", "awe@test.cd")
	cls := testutil.CreateClass(t, clsRepo, "1A", 20)

	// a one-sided roster entry
	if _, err := clsRepo.AddClassStudent(cls.ID, st.ID); err != nil {
		t.Fatalf("AddClassStudent() failed: %v", err)
	}

	req, rec := newAuthRequest(http.MethodPost, "/v1/classes/reconcile", adminToken)
	app.ServeHTTP(rec, req)
	checkCode(t, rec, http.StatusOK)
	var resp struct {
		Repaired int `json:"repaired"`
	}
	decodeInto(t, rec, &resp)
	if resp.Repaired != 1 {
		t.Errorf("reconcile repaired = %d, want 1", resp.Repaired)
	}
}
