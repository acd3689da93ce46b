package recognition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// Rekognition implements Recognizer on AWS Rekognition. The underlying
// client is created lazily on first use and reused for the lifetime of one
// pipeline invocation.
type Rekognition struct {
	region     string
	collection string
	client     *rekognition.Client
}

func NewRekognition(region, collection string) *Rekognition {
	return &Rekognition{region: region, collection: collection}
}

func (r *Rekognition) api(ctx context.Context) (*rekognition.Client, error) {
	if r.client != nil {
		return r.client, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(r.region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	r.client = rekognition.NewFromConfig(cfg)
	return r.client, nil
}

func (r *Rekognition) CollectionExists(ctx context.Context) (bool, error) {
	api, err := r.api(ctx)
	if err != nil {
		return false, err
	}
	_, err = api.DescribeCollection(ctx, &rekognition.DescribeCollectionInput{
		CollectionId: aws.String(r.collection),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to describe collection %s: %w", r.collection, err)
	}
	return true, nil
}

func (r *Rekognition) EnsureCollection(ctx context.Context) error {
	exists, err := r.CollectionExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	api, err := r.api(ctx)
	if err != nil {
		return err
	}
	if _, err := api.CreateCollection(ctx, &rekognition.CreateCollectionInput{
		CollectionId: aws.String(r.collection),
	}); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", r.collection, err)
	}
	return nil
}

func (r *Rekognition) DetectFaces(ctx context.Context, image []byte) ([]FaceDetail, error) {
	api, err := r.api(ctx)
	if err != nil {
		return nil, err
	}
	out, err := api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Attributes: []types.Attribute{types.AttributeAll},
		Image:      &types.Image{Bytes: image},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to detect faces: %w", err)
	}
	details := make([]FaceDetail, 0, len(out.FaceDetails))
	for _, fd := range out.FaceDetails {
		details = append(details, fromSDKDetail(fd))
	}
	return details, nil
}

func (r *Rekognition) IndexFace(ctx context.Context, image []byte, externalID string) (*FaceRecord, error) {
	api, err := r.api(ctx)
	if err != nil {
		return nil, err
	}
	out, err := api.IndexFaces(ctx, &rekognition.IndexFacesInput{
		CollectionId:        aws.String(r.collection),
		DetectionAttributes: []types.Attribute{types.AttributeAll},
		ExternalImageId:     aws.String(externalID),
		Image:               &types.Image{Bytes: image},
		MaxFaces:            aws.Int32(1),
		QualityFilter:       types.QualityFilterAuto,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index face %s: %w", externalID, err)
	}
	if len(out.FaceRecords) == 0 {
		return nil, fmt.Errorf("no indexable face in image for %s", externalID)
	}
	rec := out.FaceRecords[0]
	record := &FaceRecord{}
	if rec.Face != nil {
		record.FaceID = aws.ToString(rec.Face.FaceId)
	}
	if rec.FaceDetail != nil {
		record.Detail = fromSDKDetail(*rec.FaceDetail)
	}
	return record, nil
}

func (r *Rekognition) SearchFacesByImage(ctx context.Context, image []byte) ([]FaceMatch, error) {
	api, err := r.api(ctx)
	if err != nil {
		return nil, err
	}
	out, err := api.SearchFacesByImage(ctx, &rekognition.SearchFacesByImageInput{
		CollectionId: aws.String(r.collection),
		Image:        &types.Image{Bytes: image},
		MaxFaces:     aws.Int32(1),
	})
	if err != nil {
		// Rekognition reports an image without a detectable face as an
		// invalid parameter rather than as zero matches.
		var invalid *types.InvalidParameterException
		if errors.As(err, &invalid) {
			return nil, fmt.Errorf("%w: %s", ErrNoFace, invalid.ErrorMessage())
		}
		return nil, fmt.Errorf("failed to search faces: %w", err)
	}
	matches := make([]FaceMatch, 0, len(out.FaceMatches))
	for _, m := range out.FaceMatches {
		match := FaceMatch{Similarity: float64(aws.ToFloat32(m.Similarity))}
		if m.Face != nil {
			match.FaceID = aws.ToString(m.Face.FaceId)
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// fromSDKDetail flattens an SDK face detail into the local type, keeping the
// full payload around as an opaque attribute blob.
func fromSDKDetail(fd types.FaceDetail) FaceDetail {
	d := FaceDetail{Confidence: float64(aws.ToFloat32(fd.Confidence))}
	if fd.BoundingBox != nil {
		d.BoundingBox = BoundingBox{
			Left:   float64(aws.ToFloat32(fd.BoundingBox.Left)),
			Top:    float64(aws.ToFloat32(fd.BoundingBox.Top)),
			Width:  float64(aws.ToFloat32(fd.BoundingBox.Width)),
			Height: float64(aws.ToFloat32(fd.BoundingBox.Height)),
		}
	}
	if raw, err := json.Marshal(fd); err == nil {
		d.Attributes = raw
	}
	return d
}
