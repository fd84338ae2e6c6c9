package employee_test

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	appErrors "github.com/frahmantamala/attendance/internal"
	"github.com/frahmantamala/attendance/internal/auth"
	attendanceDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/attendance"
	employeeDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/employee"
	faceDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/face"
	shiftDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/shift"
	"github.com/frahmantamala/attendance/internal/employee"
	employeePostgres "github.com/frahmantamala/attendance/internal/employee/postgres"
	"github.com/frahmantamala/attendance/internal/face"
	facePostgres "github.com/frahmantamala/attendance/internal/face/postgres"
	"github.com/frahmantamala/attendance/internal/ratelimit"
	"github.com/frahmantamala/attendance/internal/testutil"
	"github.com/frahmantamala/attendance/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func TestEmployee(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Employee Suite")
}

type stubDetector struct {
	boxes []face.BBox
}

func (d *stubDetector) Detect(_ context.Context, _ image.Image) ([]face.Detection, error) {
	dets := make([]face.Detection, 0, len(d.boxes))
	for _, b := range d.boxes {
		dets = append(dets, face.Detection{Box: b, Score: 10})
	}
	return dets, nil
}

type auditEntry struct {
	EmployeeID string
	Action     string
	Details    string
}

type recordingAuditor struct {
	entries []auditEntry
}

func (a *recordingAuditor) Record(_ context.Context, employeeID, action, details, _ string) {
	a.entries = append(a.entries, auditEntry{EmployeeID: employeeID, Action: action, Details: details})
}

func portrait() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 160, 140))
	for y := 0; y < 140; y++ {
		for x := 0; x < 160; x++ {
			v := uint8((x*255/160 + y*97) % 256)
			img.Set(x, y, color.RGBA{R: v, G: 255 - v, B: uint8(x % 256), A: 255})
		}
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Employee Service", func() {
	var (
		ctx      context.Context
		db       *gorm.DB
		detector *stubDetector
		auditor  *recordingAuditor
		repo     employee.Repository
		service  *employee.Service
		slogger  *slog.Logger
		image    []byte
		dto      employee.RegisterEmployeeDTO
	)

	count := func(model interface{}, query string, args ...interface{}) int64 {
		var n int64
		q := db.Model(model)
		if query != "" {
			q = q.Where(query, args...)
		}
		Expect(q.Count(&n).Error).NotTo(HaveOccurred())
		return n
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = testutil.OpenSQLite()
		Expect(err).NotTo(HaveOccurred())

		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		detector = &stubDetector{boxes: []face.BBox{{X1: 10, Y1: 10, X2: 110, Y2: 110}}}
		faces := face.NewService(facePostgres.NewFaceRepository(db), detector, nil, face.DefaultOptions(), slogger)
		auditor = &recordingAuditor{}
		repo = employeePostgres.NewEmployeeRepository(db)
		service = employee.NewService(repo, faces, auditor, bcrypt.MinCost, slogger)

		image = portrait()
		dto = employee.RegisterEmployeeDTO{
			EmployeeID: "EMP002",
			Name:       "Grace Hopper",
			Email:      " Grace@Example.com ",
			Password:   "Cobol1959",
		}
	})

	Describe("Register", func() {
		It("stores the account together with its first template", func() {
			emp, err := service.Register(ctx, "ADMIN001", dto, image, "10.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(emp.EmployeeID).To(Equal("EMP002"))
			Expect(emp.Email).To(Equal("grace@example.com"))
			Expect(emp.Role).To(Equal(appErrors.RoleEmployee))

			var row employeeDatamodel.Employee
			Expect(db.First(&row, "employee_id = ?", "EMP002").Error).NotTo(HaveOccurred())
			Expect(row.IsActive).To(BeTrue())
			Expect(bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte("Cobol1959"))).To(Succeed())

			Expect(count(&faceDatamodel.FaceEmbedding{}, "employee_id = ?", "EMP002")).To(Equal(int64(1)))
			Expect(auditor.entries).To(ConsistOf(auditEntry{
				EmployeeID: "ADMIN001",
				Action:     "EMPLOYEE_REGISTERED",
				Details:    "Registered EMP002",
			}))
		})

		It("creates nothing when the image holds no face", func() {
			detector.boxes = nil
			_, err := service.Register(ctx, "ADMIN001", dto, image, "")
			Expect(appErrors.HasCode(err, appErrors.ErrCodeNoFaceDetected)).To(BeTrue())
			Expect(count(&employeeDatamodel.Employee{}, "")).To(BeZero())
			Expect(count(&faceDatamodel.FaceEmbedding{}, "")).To(BeZero())
			Expect(auditor.entries).To(BeEmpty())
		})

		It("rejects weak passwords", func() {
			dto.Password = "alllowercase1"
			_, err := service.Register(ctx, "ADMIN001", dto, image, "")
			appErr, ok := appErrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(appErrors.ErrorTypeValidation))
			details := appErr.Details.(appErrors.ValidationErrors)
			Expect(details.Errors[0].Field).To(Equal("password"))
			Expect(details.Errors[0].Message).To(Equal("Password must contain at least one uppercase letter"))
		})

		It("rejects unknown roles", func() {
			dto.Role = "supervisor"
			_, err := service.Register(ctx, "ADMIN001", dto, image, "")
			Expect(err).To(HaveOccurred())
			Expect(count(&employeeDatamodel.Employee{}, "")).To(BeZero())
		})

		It("reports a duplicate email as a conflict and keeps no orphan template", func() {
			_, err := service.Register(ctx, "ADMIN001", dto, image, "")
			Expect(err).NotTo(HaveOccurred())

			dto.EmployeeID = "EMP003"
			_, err = service.Register(ctx, "ADMIN001", dto, image, "")
			Expect(appErrors.HasCode(err, appErrors.ErrCodeEmployeeExists)).To(BeTrue())
			Expect(count(&faceDatamodel.FaceEmbedding{}, "employee_id = ?", "EMP003")).To(BeZero())
		})

		It("requires an image", func() {
			_, err := service.Register(ctx, "ADMIN001", dto, nil, "")
			Expect(appErrors.HasCode(err, appErrors.ErrCodeMissingImage)).To(BeTrue())
		})
	})

	Describe("EnrollFace", func() {
		It("adds a template and audits it", func() {
			_, err := service.Register(ctx, "ADMIN001", dto, image, "")
			Expect(err).NotTo(HaveOccurred())

			enrollment, err := service.EnrollFace(ctx, "ADMIN001", "EMP002", image, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(enrollment.BBox).To(Equal(face.BBox{X1: 10, Y1: 10, X2: 110, Y2: 110}))
			Expect(count(&faceDatamodel.FaceEmbedding{}, "employee_id = ?", "EMP002")).To(Equal(int64(2)))
			Expect(auditor.entries[len(auditor.entries)-1].Action).To(Equal("FACE_ENROLLED"))
		})

		It("fails for unknown employees", func() {
			_, err := service.EnrollFace(ctx, "ADMIN001", "NOBODY", image, "")
			Expect(appErrors.HasCode(err, appErrors.ErrCodeEmployeeNotFound)).To(BeTrue())
		})
	})

	Describe("Delete", func() {
		BeforeEach(func() {
			_, err := service.Register(ctx, "ADMIN001", dto, image, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Create(&attendanceDatamodel.Attendance{EmployeeID: "EMP002", Date: "2025-01-14", Status: "completed"}).Error).NotTo(HaveOccurred())
			Expect(db.Create(&attendanceDatamodel.Attendance{EmployeeID: "EMP002", Date: "2025-01-15", Status: "checked_in"}).Error).NotTo(HaveOccurred())
			Expect(db.Create(&shiftDatamodel.EmployeeShift{EmployeeID: "EMP002", ShiftID: 1, EffectiveFrom: "2025-01-01", IsActive: true}).Error).NotTo(HaveOccurred())
			auditor.entries = nil
		})

		It("cascades across templates, assignments and attendance", func() {
			emp, err := service.Delete(ctx, "ADMIN001", "EMP002", "10.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(emp.Name).To(Equal("Grace Hopper"))

			Expect(count(&employeeDatamodel.Employee{}, "employee_id = ?", "EMP002")).To(BeZero())
			Expect(count(&faceDatamodel.FaceEmbedding{}, "employee_id = ?", "EMP002")).To(BeZero())
			Expect(count(&shiftDatamodel.EmployeeShift{}, "employee_id = ?", "EMP002")).To(BeZero())
			Expect(count(&attendanceDatamodel.Attendance{}, "employee_id = ?", "EMP002")).To(Equal(int64(2)))
			Expect(count(&attendanceDatamodel.Attendance{}, "employee_id = ? AND status <> ?", "EMP002", "deleted")).To(BeZero())

			Expect(auditor.entries).To(ConsistOf(auditEntry{
				EmployeeID: "ADMIN001",
				Action:     "EMPLOYEE_DELETED",
				Details:    "Deleted employee: EMP002 (Grace Hopper)",
			}))
		})

		It("refuses to delete the caller's own account", func() {
			_, err := service.Delete(ctx, "EMP002", "EMP002", "")
			Expect(appErrors.HasCode(err, appErrors.ErrCodeSelfDeletion)).To(BeTrue())
			Expect(err.Error()).To(Equal("Cannot delete your own account"))
			Expect(count(&employeeDatamodel.Employee{}, "")).To(Equal(int64(1)))
		})

		It("reports unknown employees", func() {
			_, err := service.Delete(ctx, "ADMIN001", "NOBODY", "")
			Expect(appErrors.HasCode(err, appErrors.ErrCodeEmployeeNotFound)).To(BeTrue())
		})
	})

	Describe("SetActive", func() {
		BeforeEach(func() {
			_, err := service.Register(ctx, "ADMIN001", dto, image, "")
			Expect(err).NotTo(HaveOccurred())
			auditor.entries = nil
		})

		It("shuts a deactivated employee out of recognition and login", func() {
			emp, err := service.SetActive(ctx, "ADMIN001", "EMP002", false, "10.0.0.1")
			Expect(err).NotTo(HaveOccurred())
			Expect(emp.IsActive).To(BeFalse())
			Expect(auditor.entries).To(ConsistOf(auditEntry{
				EmployeeID: "ADMIN001",
				Action:     "EMPLOYEE_DEACTIVATED",
				Details:    "Employee: EMP002",
			}))

			_, err = service.Recognize(ctx, image)
			Expect(appErrors.HasCode(err, appErrors.ErrCodeFaceNotRecognized)).To(BeTrue())
			Expect(err.Error()).To(Equal("No registered employees found"))

			authService := auth.NewService(repo,
				auth.NewJWTTokenGenerator("0123456789abcdef0123456789abcdef", time.Hour, nil),
				ratelimit.NewLimiter(db, nil, time.Minute, slogger), 5, auditor, slogger)
			_, err = authService.Login(ctx, auth.LoginDTO{Email: "grace@example.com", Password: "Cobol1959"}, "10.0.0.1")
			Expect(err).To(Equal(appErrors.ErrEmployeeInactive))
			Expect(count(&faceDatamodel.FaceEmbedding{}, "employee_id = ?", "EMP002")).To(Equal(int64(1)))
		})

		It("lets a reactivated employee back in", func() {
			_, err := service.SetActive(ctx, "ADMIN001", "EMP002", false, "")
			Expect(err).NotTo(HaveOccurred())
			emp, err := service.SetActive(ctx, "ADMIN001", "EMP002", true, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(emp.IsActive).To(BeTrue())
			Expect(auditor.entries[len(auditor.entries)-1].Action).To(Equal("EMPLOYEE_ACTIVATED"))

			matches, err := service.Recognize(ctx, image)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches[0].EmployeeID).To(Equal("EMP002"))
		})

		It("reports unknown employees", func() {
			_, err := service.SetActive(ctx, "ADMIN001", "NOBODY", false, "")
			Expect(appErrors.HasCode(err, appErrors.ErrCodeEmployeeNotFound)).To(BeTrue())
			Expect(err.Error()).To(Equal("Employee not found"))
			Expect(auditor.entries).To(BeEmpty())
		})
	})

	Describe("Recognize", func() {
		It("finds the enrolled employee", func() {
			_, err := service.Register(ctx, "ADMIN001", dto, image, "")
			Expect(err).NotTo(HaveOccurred())

			matches, err := service.Recognize(ctx, image)
			Expect(err).NotTo(HaveOccurred())
			Expect(matches).To(HaveLen(1))
			Expect(matches[0].EmployeeID).To(Equal("EMP002"))
			Expect(matches[0].Name).To(Equal("Grace Hopper"))
		})
	})
})

var _ = Describe("Employee Handler", func() {
	type registerCall struct {
		actor string
		dto   employee.RegisterEmployeeDTO
		image []byte
	}

	var (
		handler *employee.Handler
		calls   []registerCall
	)

	BeforeEach(func() {
		calls = nil
		svc := &mockService{register: func(actor string, dto employee.RegisterEmployeeDTO, image []byte) (*employee.Employee, error) {
			calls = append(calls, registerCall{actor: actor, dto: dto, image: image})
			return &employee.Employee{EmployeeID: dto.EmployeeID, Name: dto.Name}, nil
		}}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		handler = employee.NewHandler(transport.NewBaseHandler(logger), svc, 5*1024*1024)
	})

	withAdmin := func(req *http.Request, employeeID string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("employee_id", employeeID)
		ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
		return req.WithContext(appErrors.ContextWithPrincipal(ctx, appErrors.Principal{EmployeeID: "ADMIN001", Role: appErrors.RoleAdmin}))
	}

	It("reads the status flag from the query string", func() {
		req := withAdmin(httptest.NewRequest(http.MethodPatch, "/api/v1/admin/employees/E1/status?is_active=false", nil), "E1")
		rec := httptest.NewRecorder()
		handler.UpdateStatus(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		var resp employee.StatusResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp).To(Equal(employee.StatusResponse{
			Message:    "Employee deactivated successfully",
			EmployeeID: "E1",
			IsActive:   false,
		}))
	})

	It("reads the status flag from a JSON body", func() {
		req := withAdmin(httptest.NewRequest(http.MethodPatch, "/api/v1/admin/employees/E1/status", strings.NewReader(`{"is_active": true}`)), "E1")
		rec := httptest.NewRecorder()
		handler.UpdateStatus(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		var resp employee.StatusResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.Message).To(Equal("Employee activated successfully"))
		Expect(resp.IsActive).To(BeTrue())
	})

	It("rejects a missing or malformed flag", func() {
		req := withAdmin(httptest.NewRequest(http.MethodPatch, "/api/v1/admin/employees/E1/status?is_active=maybe", nil), "E1")
		rec := httptest.NewRecorder()
		handler.UpdateStatus(rec, req)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))

		req = withAdmin(httptest.NewRequest(http.MethodPatch, "/api/v1/admin/employees/E1/status", strings.NewReader(`{}`)), "E1")
		rec = httptest.NewRecorder()
		handler.UpdateStatus(rec, req)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("registers from a multipart form", func() {
		body := &bytes.Buffer{}
		mw := multipart.NewWriter(body)
		for k, v := range map[string]string{"employee_id": "EMP002", "name": "Grace Hopper", "email": "grace@example.com", "password": "Cobol1959"} {
			Expect(mw.WriteField(k, v)).To(Succeed())
		}
		part, err := mw.CreateFormFile("face_image", "face.png")
		Expect(err).NotTo(HaveOccurred())
		_, _ = part.Write([]byte("png"))
		Expect(mw.Close()).To(Succeed())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/employees", body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req = req.WithContext(appErrors.ContextWithPrincipal(req.Context(), appErrors.Principal{EmployeeID: "ADMIN001", Role: appErrors.RoleAdmin}))

		rec := httptest.NewRecorder()
		handler.RegisterEmployee(rec, req)

		Expect(rec.Code).To(Equal(http.StatusCreated))
		var resp employee.RegisterResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &resp)).To(Succeed())
		Expect(resp.EmployeeID).To(Equal("EMP002"))
		Expect(calls).To(HaveLen(1))
		Expect(calls[0].actor).To(Equal("ADMIN001"))
		Expect(calls[0].image).To(Equal([]byte("png")))
	})
})

type mockService struct {
	register func(actor string, dto employee.RegisterEmployeeDTO, image []byte) (*employee.Employee, error)
}

func (m *mockService) Register(_ context.Context, actorID string, dto employee.RegisterEmployeeDTO, image []byte, _ string) (*employee.Employee, error) {
	return m.register(actorID, dto, image)
}

func (m *mockService) EnrollFace(context.Context, string, string, []byte, string) (*face.Enrollment, error) {
	return &face.Enrollment{}, nil
}

func (m *mockService) Delete(_ context.Context, _, employeeID, _ string) (*employee.Employee, error) {
	return &employee.Employee{EmployeeID: employeeID}, nil
}

func (m *mockService) SetActive(_ context.Context, _, employeeID string, active bool, _ string) (*employee.Employee, error) {
	return &employee.Employee{EmployeeID: employeeID, IsActive: active}, nil
}

func (m *mockService) Recognize(context.Context, []byte) ([]face.Match, error) {
	return nil, nil
}
