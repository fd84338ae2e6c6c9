package face

import (
	"context"
	"encoding/hex"
	"fmt"
	"image"
	"log/slog"

	errors "github.com/frahmantamala/attendance/internal"
	faceDatamodel "github.com/frahmantamala/attendance/internal/core/datamodel/face"
	"github.com/frahmantamala/attendance/pkg/logger"
	"github.com/zeebo/blake3"
)

type Repository interface {
	Create(ctx context.Context, row *faceDatamodel.FaceEmbedding) error
	ListActiveTemplates(ctx context.Context) ([]Template, error)
}

type Options struct {
	MaxImageBytes     int64
	MaxImageDimension int
	MaxFaces          int
	Threshold         float64
}

func DefaultOptions() Options {
	return Options{
		MaxImageBytes:     5 * 1024 * 1024,
		MaxImageDimension: 1048,
		MaxFaces:          10,
		Threshold:         0.5,
	}
}

// Face is one detected face with its template.
type Face struct {
	BBox      BBox
	Embedding []float32
}

// Enrollment is a validated single-face template ready to be stored.
type Enrollment struct {
	Embedding []float32
	ImageHash string
	BBox      BBox
}

func (e *Enrollment) ToDataModel(employeeID string) *faceDatamodel.FaceEmbedding {
	return &faceDatamodel.FaceEmbedding{
		EmployeeID: employeeID,
		Embedding:  faceDatamodel.Vector(e.Embedding),
		ImageHash:  e.ImageHash,
	}
}

type Service struct {
	repo     Repository
	detector Detector
	embedder Embedder
	matcher  Matcher
	opts     Options
	logger   *slog.Logger
}

func NewService(repo Repository, detector Detector, embedder Embedder, opts Options, logger *slog.Logger) *Service {
	if embedder == nil {
		embedder = NewPatchEmbedder()
	}
	return &Service{
		repo:     repo,
		detector: detector,
		embedder: embedder,
		matcher:  NewMatcher(opts.Threshold),
		opts:     opts,
		logger:   logger,
	}
}

// HashImage returns the hex BLAKE3 digest of the raw upload.
func HashImage(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Analyze decodes data, detects faces and embeds each one.
func (s *Service) Analyze(ctx context.Context, data []byte) ([]Face, error) {
	if len(data) == 0 {
		return nil, errors.NewValidationError("No face image provided", errors.ErrCodeMissingImage)
	}
	if int64(len(data)) > s.opts.MaxImageBytes {
		message := fmt.Sprintf("Image file too large (max %dMB)", s.opts.MaxImageBytes/(1024*1024))
		return nil, errors.NewValidationError(message, errors.ErrCodeImageTooLarge)
	}

	decoded, err := Decode(data)
	if err != nil {
		logger.FromOr(ctx, s.logger).Debug("image decode failed", "error", err)
		return nil, errors.NewValidationError("Invalid image file", errors.ErrCodeInvalidImage)
	}
	img := Normalize(decoded, s.opts.MaxImageDimension)

	return s.detectAndEmbed(ctx, img), nil
}

func (s *Service) detectAndEmbed(ctx context.Context, img *image.RGBA) []Face {
	dets, err := s.detector.Detect(ctx, img)
	if err != nil {
		logger.FromOr(ctx, s.logger).Error("face detection failed", "error", err)
		return nil
	}
	dets = clampDetections(dets, img.Bounds(), s.opts.MaxFaces)

	faces := make([]Face, 0, len(dets))
	for _, det := range dets {
		faces = append(faces, Face{
			BBox:      det.Box,
			Embedding: s.embedder.Embed(img, det.Box.Rect()),
		})
	}
	return faces
}

// Enroll validates that data holds exactly one face and returns its
// template without storing it.
func (s *Service) Enroll(ctx context.Context, data []byte) (*Enrollment, error) {
	faces, err := s.Analyze(ctx, data)
	if err != nil {
		return nil, err
	}
	switch {
	case len(faces) == 0:
		return nil, errors.NewBiometricMismatch("No face detected in image", errors.ErrCodeNoFaceDetected)
	case len(faces) > 1:
		return nil, errors.NewBiometricMismatch("Multiple faces detected. Please use image with single face", errors.ErrCodeMultipleFaces)
	}
	return &Enrollment{
		Embedding: faces[0].Embedding,
		ImageHash: HashImage(data),
		BBox:      faces[0].BBox,
	}, nil
}

// RegisterFace enrolls data and stores the template for employeeID.
func (s *Service) RegisterFace(ctx context.Context, employeeID string, data []byte) (*Enrollment, error) {
	enrollment, err := s.Enroll(ctx, data)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, enrollment.ToDataModel(employeeID)); err != nil {
		s.logger.Error("failed to store face template", "employee_id", employeeID, "error", err)
		return nil, errors.NewInternalError("Failed to register face", err)
	}
	s.logger.Info("face registered", "employee_id", employeeID)
	return enrollment, nil
}

// Recognize matches every face in data against the templates of active
// employees. Faces without a qualifying template are left out.
func (s *Service) Recognize(ctx context.Context, data []byte) ([]Match, error) {
	faces, err := s.Analyze(ctx, data)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, errors.NewBiometricMismatch("No face detected", errors.ErrCodeNoFaceDetected)
	}

	templates, err := s.repo.ListActiveTemplates(ctx)
	if err != nil {
		s.logger.Error("failed to load face templates", "error", err)
		return nil, errors.NewInternalError("Face recognition unavailable", err)
	}
	if len(templates) == 0 {
		return nil, errors.NewBiometricMismatch("No registered employees found", errors.ErrCodeFaceNotRecognized)
	}

	matches := make([]Match, 0, len(faces))
	for _, f := range faces {
		t, score, ok := s.matcher.Best(f.Embedding, templates)
		if !ok {
			continue
		}
		matches = append(matches, Match{
			EmployeeID: t.EmployeeID,
			Name:       t.Name,
			Confidence: score,
			BBox:       f.BBox,
		})
	}
	if len(matches) == 0 {
		return nil, errors.NewBiometricMismatch("No matching employee found", errors.ErrCodeFaceNotRecognized)
	}
	return matches, nil
}

// Verify requires some face in data to match employeeID. Input and storage
// errors pass through; every other recognition failure collapses into one
// message so callers learn nothing about other enrolled employees.
func (s *Service) Verify(ctx context.Context, employeeID string, data []byte) (*Match, error) {
	matches, err := s.Recognize(ctx, data)
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok && appErr.Type == errors.ErrorTypeBiometricMismatch {
			return nil, errors.NewBiometricMismatch("Face verification failed", errors.ErrCodeFaceNotRecognized)
		}
		return nil, err
	}
	for i := range matches {
		if matches[i].EmployeeID == employeeID {
			return &matches[i], nil
		}
	}
	return nil, errors.NewBiometricMismatch("Face does not match registered employee", errors.ErrCodeFaceIdentityMismatch)
}
