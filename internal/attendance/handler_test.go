package attendance_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"time"

	appErrors "github.com/frahmantamala/attendance/internal"
	"github.com/frahmantamala/attendance/internal/attendance"
	"github.com/frahmantamala/attendance/internal/transport"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockService struct {
	lastRequest attendance.Request
	result      *attendance.Result
	status      *attendance.DayStatus
	err         error
}

func (m *mockService) CheckIn(_ context.Context, req attendance.Request) (*attendance.Result, error) {
	m.lastRequest = req
	return m.result, m.err
}

func (m *mockService) CheckOut(_ context.Context, req attendance.Request) (*attendance.Result, error) {
	m.lastRequest = req
	return m.result, m.err
}

func (m *mockService) Status(_ context.Context, _ string) (*attendance.DayStatus, error) {
	return m.status, m.err
}

var _ = Describe("Attendance Handler", func() {
	var (
		svc     *mockService
		handler *attendance.Handler
		at      time.Time
	)

	withPrincipal := func(r *http.Request) *http.Request {
		ctx := appErrors.ContextWithPrincipal(r.Context(), appErrors.Principal{EmployeeID: "EMP001", Role: appErrors.RoleEmployee})
		ctx = appErrors.ContextWithClientIP(ctx, "10.0.0.7")
		return r.WithContext(ctx)
	}

	multipartRequest := func(lat, lon string, image []byte) *http.Request {
		body := &bytes.Buffer{}
		mw := multipart.NewWriter(body)
		Expect(mw.WriteField("latitude", lat)).To(Succeed())
		Expect(mw.WriteField("longitude", lon)).To(Succeed())
		if image != nil {
			part, err := mw.CreateFormFile("face_image", "face.jpg")
			Expect(err).NotTo(HaveOccurred())
			_, err = part.Write(image)
			Expect(err).NotTo(HaveOccurred())
		}
		Expect(mw.Close()).To(Succeed())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/checkin", body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		return withPrincipal(req)
	}

	decodeError := func(rec *httptest.ResponseRecorder) map[string]interface{} {
		var body struct {
			Error map[string]interface{} `json:"error"`
		}
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		return body.Error
	}

	BeforeEach(func() {
		at = time.Date(2025, 1, 15, 7, 1, 0, 0, time.UTC)
		svc = &mockService{result: &attendance.Result{
			Message:    "Checked in successfully",
			Time:       at,
			Location:   attendance.Location{Latitude: 6.5, Longitude: 3.3, Validation: "Within office premises (0.00 km from office)"},
			Confidence: 0.91,
		}}
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
		handler = attendance.NewHandler(transport.NewBaseHandler(logger), svc, 5*1024*1024)
	})

	It("accepts a multipart upload", func() {
		rec := httptest.NewRecorder()
		handler.CheckIn(rec, multipartRequest("6.5", "3.3", []byte("jpeg")))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(svc.lastRequest.EmployeeID).To(Equal("EMP001"))
		Expect(svc.lastRequest.IP).To(Equal("10.0.0.7"))
		Expect(svc.lastRequest.Latitude).To(Equal(6.5))
		Expect(svc.lastRequest.Image).To(Equal([]byte("jpeg")))

		var body attendance.CheckResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.Message).To(Equal("Checked in successfully"))
		Expect(body.Time).To(Equal("2025-01-15T07:01:00Z"))
		Expect(body.Confidence).To(Equal(0.91))
	})

	It("accepts a base64 data URI in a urlencoded body", func() {
		form := url.Values{}
		form.Set("latitude", "6.5")
		form.Set("longitude", "3.3")
		form.Set("face_image_base64", "data:image/jpeg;base64,"+base64.StdEncoding.EncodeToString([]byte("jpeg")))
		req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/checkout", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		rec := httptest.NewRecorder()
		handler.CheckOut(rec, withPrincipal(req))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(svc.lastRequest.Image).To(Equal([]byte("jpeg")))
	})

	It("rejects a request without an image", func() {
		rec := httptest.NewRecorder()
		handler.CheckIn(rec, multipartRequest("6.5", "3.3", nil))

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeError(rec)["code"]).To(Equal("MISSING_IMAGE"))
	})

	It("rejects a non-numeric latitude", func() {
		rec := httptest.NewRecorder()
		handler.CheckIn(rec, multipartRequest("north", "3.3", []byte("jpeg")))

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(decodeError(rec)["message"]).To(Equal("latitude must be a number"))
	})

	It("requires an authenticated caller", func() {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/attendance/checkin", nil)
		rec := httptest.NewRecorder()
		handler.CheckIn(rec, req)
		Expect(rec.Code).To(Equal(http.StatusUnauthorized))
	})

	It("maps policy rejections to their status code", func() {
		svc.err = appErrors.NewRateLimitedError("Too many check-in attempts. Please try again later.")
		rec := httptest.NewRecorder()
		handler.CheckIn(rec, multipartRequest("6.5", "3.3", []byte("jpeg")))

		Expect(rec.Code).To(Equal(http.StatusTooManyRequests))
		Expect(decodeError(rec)["message"]).To(Equal("Too many check-in attempts. Please try again later."))
	})

	It("reports today's status", func() {
		checkIn := at
		svc.status = &attendance.DayStatus{Date: "2025-01-15", State: attendance.StateCheckedIn, CheckInTime: &checkIn}
		req := withPrincipal(httptest.NewRequest(http.MethodGet, "/api/v1/attendance/status", nil))
		rec := httptest.NewRecorder()
		handler.GetStatus(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		var body attendance.StatusResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body.CheckedIn).To(BeTrue())
		Expect(body.CheckedOut).To(BeFalse())
		Expect(body.Status).To(Equal(attendance.StateCheckedIn))
	})
})
