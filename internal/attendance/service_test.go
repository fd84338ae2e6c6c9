package attendance_test

import (
	"bytes"
	"context"
	"errors"
	goimage "image"
	"image/color"
	"image/png"
	"log/slog"
	"math"
	"os"
	"sync"
	"testing"
	"time"

	appErrors "github.com/frahmantamala/attendance/internal"
	"github.com/frahmantamala/attendance/internal/attendance"
	attendancePostgres "github.com/frahmantamala/attendance/internal/attendance/postgres"
	"github.com/frahmantamala/attendance/internal/blobstore"
	attendanceDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/attendance"
	employeeDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/employee"
	faceDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/face"
	"github.com/frahmantamala/attendance/internal/face"
	facePostgres "github.com/frahmantamala/attendance/internal/face/postgres"
	"github.com/frahmantamala/attendance/internal/geofence"
	"github.com/frahmantamala/attendance/internal/ratelimit"
	"github.com/frahmantamala/attendance/internal/shift"
	shiftPostgres "github.com/frahmantamala/attendance/internal/shift/postgres"
	"github.com/frahmantamala/attendance/internal/testutil"
	"github.com/frahmantamala/attendance/pkg/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"
	"gorm.io/gorm"
)

func TestAttendance(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Attendance Suite")
}

const (
	officeLat = 6.5991886
	officeLon = 3.3489671
)

type auditEntry struct {
	EmployeeID string
	Action     string
	Details    string
}

type recordingAuditor struct {
	mu      sync.Mutex
	entries []auditEntry
}

func (a *recordingAuditor) Record(_ context.Context, employeeID, action, details, _ string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, auditEntry{EmployeeID: employeeID, Action: action, Details: details})
}

func (a *recordingAuditor) Last() auditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entries[len(a.entries)-1]
}

func (a *recordingAuditor) Count(action string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, e := range a.entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

// stubVerifier accepts every image as the configured employee.
type stubVerifier struct {
	mu    sync.Mutex
	match *face.Match
	err   error
	calls int
}

func (v *stubVerifier) Verify(_ context.Context, employeeID string, _ []byte) (*face.Match, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if v.err != nil {
		return nil, v.err
	}
	if v.match.EmployeeID != employeeID {
		return nil, appErrors.NewBiometricMismatch("Face does not match registered employee", appErrors.ErrCodeFaceIdentityMismatch)
	}
	m := *v.match
	return &m, nil
}

// oneFaceDetector reports a single face in every image.
type oneFaceDetector struct{}

func (oneFaceDetector) Detect(context.Context, goimage.Image) ([]face.Detection, error) {
	return []face.Detection{{Box: face.BBox{X1: 8, Y1: 8, X2: 56, Y2: 56}, Score: 10}}, nil
}

// axisEmbedder maps every face onto the first basis vector.
type axisEmbedder struct{}

func (axisEmbedder) Embed(goimage.Image, goimage.Rectangle) []float32 {
	v := make([]float32, face.EmbeddingSize)
	v[0] = 1
	return v
}

func grayPNG() []byte {
	img := goimage.NewRGBA(goimage.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 120, G: 120, B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	Expect(png.Encode(&buf, img)).To(Succeed())
	return buf.Bytes()
}

// storeTemplate enrolls a template at the given cosine similarity from the
// vector axisEmbedder produces.
func storeTemplate(db *gorm.DB, employeeID string, similarity float64) {
	v := make([]float32, face.EmbeddingSize)
	v[0] = float32(similarity)
	v[1] = float32(math.Sqrt(1 - similarity*similarity))
	Expect(db.Create(&faceDatamodel.FaceEmbedding{EmployeeID: employeeID, Embedding: v}).Error).NotTo(HaveOccurred())
}

// staleReadRepository never sees an existing record, so only the unique
// (employee, date) index can stop a duplicate insert.
type staleReadRepository struct {
	attendance.Repository
}

func (staleReadRepository) FindByDate(context.Context, string, string) (*attendanceDatamodel.Attendance, error) {
	return nil, nil
}

func (r staleReadRepository) Transaction(ctx context.Context, fn func(repo attendance.Repository) error) error {
	return r.Repository.Transaction(ctx, func(tx attendance.Repository) error {
		return fn(staleReadRepository{Repository: tx})
	})
}

type allowAll struct{}

func (allowAll) Allow(context.Context, string, string, int) bool { return true }

var _ = Describe("Attendance Service", func() {
	var (
		ctx      context.Context
		db       *gorm.DB
		clk      *clock.FakeClock
		auditor  *recordingAuditor
		verifier *stubVerifier
		shifts   *shift.Service
		morning  int64
		fs       afero.Fs
		deps     attendance.Dependencies
		service  *attendance.Service
		slogger  *slog.Logger
		image    []byte
	)

	// 2025-01-15 is a Wednesday.
	wednesday := func(h, m int) time.Time {
		return time.Date(2025, 1, 15, h, m, 0, 0, time.UTC)
	}

	request := func() attendance.Request {
		return attendance.Request{
			EmployeeID: "EMP001",
			Latitude:   officeLat,
			Longitude:  officeLon,
			Image:      image,
			IP:         "10.0.0.7",
		}
	}

	addEmployee := func(id string) {
		Expect(db.Create(&employeeDatamodel.Employee{
			EmployeeID: id, Name: "Employee " + id, Email: id + "@example.com",
			PasswordHash: "x", Role: "employee", IsActive: true,
		}).Error).NotTo(HaveOccurred())
	}

	records := func() []attendanceDatamodel.Attendance {
		var rows []attendanceDatamodel.Attendance
		Expect(db.Order("id").Find(&rows).Error).NotTo(HaveOccurred())
		return rows
	}

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = testutil.OpenSQLite()
		Expect(err).NotTo(HaveOccurred())

		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		clk = clock.Fake(wednesday(6, 59))
		auditor = &recordingAuditor{}
		verifier = &stubVerifier{match: &face.Match{EmployeeID: "EMP001", Name: "Ada", Confidence: 0.93}}
		image = []byte("jpeg bytes")

		Expect(db.Create(&employeeDatamodel.Employee{
			EmployeeID: "EMP001", Name: "Ada", Email: "ada@example.com",
			PasswordHash: "x", Role: "employee", IsActive: true,
		}).Error).NotTo(HaveOccurred())

		shiftRepo := shiftPostgres.NewShiftRepository(db)
		shifts = shift.NewService(shiftRepo, auditor, clk, time.UTC, shift.Defaults{
			CheckIn:  shift.Window{Start: "07:00", End: "10:00"},
			CheckOut: shift.Window{Start: "16:00", End: "20:00"},
		}, slogger)
		catalogue, err := shift.DefaultShifts()
		Expect(err).NotTo(HaveOccurred())
		_, err = shifts.SeedDefaults(ctx, catalogue)
		Expect(err).NotTo(HaveOccurred())
		morningShift, err := shiftRepo.GetShiftByName(ctx, "Morning Shift")
		Expect(err).NotTo(HaveOccurred())
		morning = morningShift.ID
		_, err = shifts.Assign(ctx, "ADMIN", "EMP001", shift.AssignShiftDTO{ShiftID: morning, EffectiveFrom: "2025-01-01"}, "")
		Expect(err).NotTo(HaveOccurred())

		fs = afero.NewMemMapFs()
		store, err := blobstore.New(fs, "face_images")
		Expect(err).NotTo(HaveOccurred())

		deps = attendance.Dependencies{
			Repo:     attendancePostgres.NewAttendanceRepository(db),
			Limiter:  ratelimit.NewLimiter(db, clk, time.Minute, slogger),
			Limits:   ratelimit.DefaultLimits(),
			Location: geofence.NewValidator(geofence.Settings{OfficeLatitude: officeLat, OfficeLongitude: officeLon, RadiusKM: 1.0}),
			Time:     shifts,
			Faces:    verifier,
			Evidence: store,
			Auditor:  auditor,
			Clock:    clk,
			Timezone: time.UTC,
		}
		service = attendance.NewService(deps, slogger)
	})

	Describe("CheckIn", func() {
		It("rejects attempts before the shift window and accepts them inside it", func() {
			_, err := service.CheckIn(ctx, request())
			Expect(appErrors.HasCode(err, appErrors.ErrCodeOutsideTimeWindow)).To(BeTrue())
			Expect(err.Error()).To(Equal("Outside check-in hours (07:00 - 08:30)"))
			Expect(auditor.Last()).To(Equal(auditEntry{
				EmployeeID: "EMP001",
				Action:     "CHECKIN_FAILED",
				Details:    "Invalid time: Outside check-in hours (07:00 - 08:30)",
			}))
			Expect(records()).To(BeEmpty())
			Expect(verifier.calls).To(BeZero())

			clk.Set(wednesday(7, 1))
			result, err := service.CheckIn(ctx, request())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("Checked in successfully"))
			Expect(result.Confidence).To(Equal(0.93))
			Expect(result.Location.Validation).To(Equal("Within office premises (0.00 km from office)"))

			rows := records()
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Status).To(Equal("checked_in"))
			Expect(rows[0].Date).To(Equal("2025-01-15"))
			Expect(*rows[0].CheckInConfidence).To(Equal(0.93))
			Expect(*rows[0].CheckInImagePath).To(HaveSuffix("EMP001_checkin_20250115_070100.jpg"))

			stored, err := afero.ReadFile(fs, *rows[0].CheckInImagePath)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(Equal(image))

			last := auditor.Last()
			Expect(last.Action).To(Equal("CHECKIN_SUCCESS"))
			Expect(last.Details).To(Equal("Location: Within office premises (0.00 km from office)"))
		})

		It("rejects a second check-in on the same day", func() {
			clk.Set(wednesday(7, 10))
			_, err := service.CheckIn(ctx, request())
			Expect(err).NotTo(HaveOccurred())

			_, err = service.CheckIn(ctx, request())
			Expect(appErrors.HasCode(err, appErrors.ErrCodeAlreadyCheckedIn)).To(BeTrue())
			Expect(records()).To(HaveLen(1))
		})

		It("admits exactly one of many concurrent check-ins", func() {
			deps.Limiter = allowAll{}
			service = attendance.NewService(deps, slogger)
			clk.Set(wednesday(7, 10))

			const attempts = 8
			var (
				wg        sync.WaitGroup
				mu        sync.Mutex
				successes int
				conflicts int
			)
			for i := 0; i < attempts; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := service.CheckIn(ctx, request())
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						successes++
					} else if appErrors.HasCode(err, appErrors.ErrCodeAlreadyCheckedIn) {
						conflicts++
					}
				}()
			}
			wg.Wait()

			Expect(successes).To(Equal(1))
			Expect(conflicts).To(Equal(attempts - 1))
			Expect(records()).To(HaveLen(1))
			Expect(auditor.Count("CHECKIN_SUCCESS")).To(Equal(1))
		})

		It("rejects locations outside the office radius", func() {
			clk.Set(wednesday(7, 10))
			req := request()
			req.Latitude = 6.6991886

			_, err := service.CheckIn(ctx, req)
			Expect(appErrors.HasCode(err, appErrors.ErrCodeOutsideGeofence)).To(BeTrue())
			Expect(err.Error()).To(Equal("Outside office premises (11.12 km from office)"))
			Expect(auditor.Last().Details).To(Equal("Invalid location: Outside office premises (11.12 km from office)"))
			Expect(records()).To(BeEmpty())
		})

		It("rejects a face that belongs to someone else", func() {
			clk.Set(wednesday(7, 10))
			verifier.match = &face.Match{EmployeeID: "E2", Confidence: 0.9}

			_, err := service.CheckIn(ctx, request())
			Expect(appErrors.HasCode(err, appErrors.ErrCodeFaceIdentityMismatch)).To(BeTrue())
			Expect(auditor.Last().Action).To(Equal("CHECKIN_FAILED"))
			Expect(records()).To(BeEmpty())
		})

		It("hides internal failures from the caller", func() {
			clk.Set(wednesday(7, 10))
			verifier.err = errors.New("template store offline")

			_, err := service.CheckIn(ctx, request())
			appErr, ok := appErrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(appErrors.ErrorTypeInternal))
			Expect(appErr.Message).To(Equal("Check-in failed"))
			Expect(auditor.Last().Action).To(Equal("CHECKIN_ERROR"))
		})

		It("stops after three attempts per minute", func() {
			for i := 0; i < 3; i++ {
				_, err := service.CheckIn(ctx, request())
				Expect(appErrors.HasCode(err, appErrors.ErrCodeOutsideTimeWindow)).To(BeTrue())
			}
			_, err := service.CheckIn(ctx, request())
			Expect(appErrors.HasCode(err, appErrors.ErrCodeRateLimited)).To(BeTrue())
			Expect(err.Error()).To(Equal("Too many check-in attempts. Please try again later."))
		})

		It("validates input before anything else", func() {
			req := request()
			req.Latitude = 91
			_, err := service.CheckIn(ctx, req)
			appErr, ok := appErrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(appErrors.ErrorTypeValidation))
			Expect(auditor.Count("CHECKIN_FAILED")).To(BeZero())

			req = request()
			req.Image = nil
			_, err = service.CheckIn(ctx, req)
			Expect(appErrors.HasCode(err, appErrors.ErrCodeMissingImage)).To(BeTrue())
		})

		It("accepts short employee ids that are on file", func() {
			addEmployee("E1")
			_, err := shifts.Assign(ctx, "ADMIN", "E1", shift.AssignShiftDTO{ShiftID: morning, EffectiveFrom: "2025-01-01"}, "")
			Expect(err).NotTo(HaveOccurred())
			verifier.match = &face.Match{EmployeeID: "E1", Confidence: 0.88}

			req := request()
			req.EmployeeID = "E1"
			clk.Set(wednesday(7, 1))
			_, err = service.CheckIn(ctx, req)
			Expect(err).NotTo(HaveOccurred())

			clk.Set(wednesday(15, 45))
			_, err = service.CheckOut(ctx, req)
			Expect(err).NotTo(HaveOccurred())

			rows := records()
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].EmployeeID).To(Equal("E1"))
			Expect(rows[0].Status).To(Equal("completed"))
		})

		It("still requires an employee id", func() {
			req := request()
			req.EmployeeID = "  "
			_, err := service.CheckIn(ctx, req)
			appErr, ok := appErrors.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.Type).To(Equal(appErrors.ErrorTypeValidation))
			Expect(verifier.calls).To(BeZero())
		})

		It("falls back on the unique daily index when the read misses a record", func() {
			Expect(db.Create(&attendanceDatamodel.Attendance{
				EmployeeID: "EMP001", Date: "2025-01-15", Status: "checked_in",
			}).Error).NotTo(HaveOccurred())
			deps.Repo = staleReadRepository{Repository: attendancePostgres.NewAttendanceRepository(db)}
			service = attendance.NewService(deps, slogger)
			clk.Set(wednesday(7, 10))

			_, err := service.CheckIn(ctx, request())
			Expect(appErrors.HasCode(err, appErrors.ErrCodeAlreadyCheckedIn)).To(BeTrue())
			Expect(err.Error()).To(Equal("Already checked in today"))
			Expect(auditor.Last()).To(Equal(auditEntry{
				EmployeeID: "EMP001",
				Action:     "CHECKIN_FAILED",
				Details:    "Already checked in today",
			}))
			Expect(records()).To(HaveLen(1))

			images, err := afero.ReadDir(fs, "face_images")
			Expect(err).NotTo(HaveOccurred())
			Expect(images).To(BeEmpty())
		})

		Context("with stored face templates", func() {
			BeforeEach(func() {
				deps.Faces = face.NewService(facePostgres.NewFaceRepository(db), oneFaceDetector{}, axisEmbedder{}, face.DefaultOptions(), slogger)
				service = attendance.NewService(deps, slogger)
				image = grayPNG()
				clk.Set(wednesday(7, 10))
			})

			It("refuses a face scoring 0.49", func() {
				storeTemplate(db, "EMP001", 0.49)

				_, err := service.CheckIn(ctx, request())
				Expect(appErrors.HasCode(err, appErrors.ErrCodeFaceNotRecognized)).To(BeTrue())
				Expect(err.Error()).To(Equal("Face verification failed"))
				Expect(auditor.Last()).To(Equal(auditEntry{
					EmployeeID: "EMP001",
					Action:     "CHECKIN_FAILED",
					Details:    "Face verification: Face verification failed",
				}))
				Expect(records()).To(BeEmpty())
			})

			It("admits a face scoring 0.51", func() {
				storeTemplate(db, "EMP001", 0.51)

				result, err := service.CheckIn(ctx, request())
				Expect(err).NotTo(HaveOccurred())
				Expect(result.Confidence).To(BeNumerically("~", 0.51, 1e-5))
				Expect(records()).To(HaveLen(1))
			})
		})
	})

	Describe("CheckOut", func() {
		It("rejects employees without a shift", func() {
			addEmployee("EMP002")
			verifier.match = &face.Match{EmployeeID: "EMP002", Confidence: 0.9}
			clk.Set(wednesday(15, 45))

			req := request()
			req.EmployeeID = "EMP002"
			_, err := service.CheckOut(ctx, req)
			Expect(appErrors.HasCode(err, appErrors.ErrCodeNoShiftAssigned)).To(BeTrue())
			Expect(err.Error()).To(Equal("No shift assigned"))
			Expect(auditor.Last()).To(Equal(auditEntry{
				EmployeeID: "EMP002",
				Action:     "CHECKOUT_FAILED",
				Details:    "Invalid time: No shift assigned",
			}))
			Expect(verifier.calls).To(BeZero())
		})

		It("completes the day after a check-in", func() {
			clk.Set(wednesday(7, 10))
			_, err := service.CheckIn(ctx, request())
			Expect(err).NotTo(HaveOccurred())

			clk.Set(wednesday(15, 45))
			result, err := service.CheckOut(ctx, request())
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Message).To(Equal("Checked out successfully"))

			rows := records()
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Status).To(Equal("completed"))
			Expect(rows[0].CheckOutTime).NotTo(BeNil())
			Expect(*rows[0].CheckOutImagePath).To(HaveSuffix("EMP001_checkout_20250115_154500.jpg"))
			Expect(auditor.Last().Action).To(Equal("CHECKOUT_SUCCESS"))
		})

		It("requires an active check-in", func() {
			clk.Set(wednesday(15, 45))
			_, err := service.CheckOut(ctx, request())
			Expect(appErrors.HasCode(err, appErrors.ErrCodeNoActiveCheckIn)).To(BeTrue())
			Expect(err.Error()).To(Equal("No active check-in found for today"))
			Expect(records()).To(BeEmpty())

			images, err := afero.ReadDir(fs, "face_images")
			Expect(err).NotTo(HaveOccurred())
			Expect(images).To(BeEmpty())
		})

		It("rejects a second check-out", func() {
			clk.Set(wednesday(7, 10))
			_, err := service.CheckIn(ctx, request())
			Expect(err).NotTo(HaveOccurred())
			clk.Set(wednesday(15, 45))
			_, err = service.CheckOut(ctx, request())
			Expect(err).NotTo(HaveOccurred())

			clk.Advance(2 * time.Minute)
			_, err = service.CheckOut(ctx, request())
			Expect(appErrors.HasCode(err, appErrors.ErrCodeNoActiveCheckIn)).To(BeTrue())
		})
	})

	Describe("Status", func() {
		It("walks through absent, checked in and completed", func() {
			status, err := service.Status(ctx, "EMP001")
			Expect(err).NotTo(HaveOccurred())
			Expect(status.State).To(Equal(attendance.StateAbsent))
			Expect(status.Date).To(Equal("2025-01-15"))

			clk.Set(wednesday(7, 10))
			_, err = service.CheckIn(ctx, request())
			Expect(err).NotTo(HaveOccurred())
			status, err = service.Status(ctx, "EMP001")
			Expect(err).NotTo(HaveOccurred())
			Expect(status.State).To(Equal(attendance.StateCheckedIn))
			Expect(status.CheckInTime).NotTo(BeNil())

			clk.Set(wednesday(16, 0))
			_, err = service.CheckOut(ctx, request())
			Expect(err).NotTo(HaveOccurred())
			status, err = service.Status(ctx, "EMP001")
			Expect(err).NotTo(HaveOccurred())
			Expect(status.State).To(Equal(attendance.StateCompleted))
		})

		It("ignores deleted records", func() {
			clk.Set(wednesday(7, 10))
			_, err := service.CheckIn(ctx, request())
			Expect(err).NotTo(HaveOccurred())
			Expect(db.Model(&attendanceDatamodel.Attendance{}).Where("employee_id = ?", "EMP001").
				Update("status", "deleted").Error).NotTo(HaveOccurred())

			status, err := service.Status(ctx, "EMP001")
			Expect(err).NotTo(HaveOccurred())
			Expect(status.State).To(Equal(attendance.StateAbsent))
		})
	})
})
