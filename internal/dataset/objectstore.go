package dataset

import (
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"

	"github.com/sells-group/habitability/internal/config"
	"github.com/sells-group/habitability/internal/spatial"
)

// objectGetter opens one object for reading.
type objectGetter func(ctx context.Context, bucket, key string) (io.ReadCloser, error)

// ObjectSource reads the two dataset files from an S3-compatible bucket.
// Objects use the same formats as FileSource.
type ObjectSource struct {
	Bucket      string
	PointsKey   string
	PolygonsKey string

	get objectGetter
}

// NewObjectSource connects a MinIO client for cfg. No request is made until
// the first read.
func NewObjectSource(cfg config.S3Config) (*ObjectSource, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, eris.Wrap(err, "dataset: create object store client")
	}

	return &ObjectSource{
		Bucket:      cfg.Bucket,
		PointsKey:   cfg.PointsKey,
		PolygonsKey: cfg.PolygonsKey,
		get: func(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
			return client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
		},
	}, nil
}

// Points reads the points object.
func (s *ObjectSource) Points(ctx context.Context) ([]spatial.PointRecord, error) {
	recs, err := s.readRecords(ctx, s.PointsKey)
	if err != nil {
		return nil, err
	}
	out := make([]spatial.PointRecord, len(recs))
	for i, r := range recs {
		out[i] = spatial.PointRecord(r)
	}
	return out, nil
}

// Zones reads the polygons object.
func (s *ObjectSource) Zones(ctx context.Context) ([]spatial.ZoneRecord, error) {
	recs, err := s.readRecords(ctx, s.PolygonsKey)
	if err != nil {
		return nil, err
	}
	out := make([]spatial.ZoneRecord, len(recs))
	for i, r := range recs {
		out[i] = spatial.ZoneRecord(r)
	}
	return out, nil
}

func (s *ObjectSource) readRecords(ctx context.Context, key string) ([]map[string]any, error) {
	obj, err := s.get(ctx, s.Bucket, key)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: get object %s/%s", s.Bucket, key)
	}
	defer obj.Close() //nolint:errcheck

	// minio defers request errors such as NoSuchKey to the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		if code := minio.ToErrorResponse(err).Code; code != "" {
			return nil, eris.Wrapf(err, "dataset: read object %s/%s (%s)", s.Bucket, key, code)
		}
		return nil, eris.Wrapf(err, "dataset: read object %s/%s", s.Bucket, key)
	}

	recs, err := DecodeRecords(data)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: decode object %s/%s", s.Bucket, key)
	}
	return recs, nil
}
