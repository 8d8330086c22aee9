package scaler

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
)

func TestTransform(t *testing.T) {
	tests := []struct {
		name   string
		params Params
		raw    float64
		want   float64
	}{
		{"standard", Params{Kind: KindStandard, Mean: []float64{-21.5}, Scale: []float64{2}}, -20.5, 0.5},
		{"minmax", Params{Kind: KindMinMax, Min: []float64{1.4}, Scale: []float64{0.05}}, -20, 0.4},
		{"robust", Params{Kind: KindRobust, Center: []float64{-21}, Scale: []float64{4}}, -19, 0.5},
		{"robust zero scale centers", Params{Kind: KindRobust, Center: []float64{-21}, Scale: []float64{0}}, -19, 2},
		{"inferred robust", Params{Center: []float64{-21}, Scale: []float64{4}}, -23, -0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := FromParams(tt.params)
			if err != nil {
				t.Fatalf("FromParams() error = %v", err)
			}
			got, err := s.Transform(tt.raw)
			if err != nil {
				t.Fatalf("Transform() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Transform(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestTransform_NotLoaded(t *testing.T) {
	s := New()
	if s.Loaded() {
		t.Error("Loaded() = true for empty scaler")
	}
	if _, err := s.Transform(-20); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("Transform() error = %v, want ErrNotLoaded", err)
	}
}

func TestParams_Validate(t *testing.T) {
	bad := []Params{
		{},
		{Kind: KindStandard, Scale: []float64{1}},
		{Kind: KindStandard, Mean: []float64{0}, Scale: []float64{0}},
		{Kind: KindMinMax, Scale: []float64{1}},
		{Kind: KindRobust, Scale: []float64{1}},
		{Kind: "quantile", Scale: []float64{1}, Mean: []float64{0}},
	}
	for i, p := range bad {
		if err := p.Validate(); err == nil {
			t.Errorf("case %d: Validate() = nil, want error", i)
		}
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scaler_params.json")
	if err := os.WriteFile(path, []byte(`{"center":[-21.5],"scale":[3.0]}`), 0o600); err != nil {
		t.Fatal(err)
	}

	l := &Loader{}
	p, err := l.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if p.Center[0] != -21.5 || p.Scale[0] != 3.0 {
		t.Errorf("Load() = %+v", p)
	}
}

func TestLoad_FileErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "bad.json")
	os.WriteFile(garbage, []byte("not json"), 0o600) //nolint:errcheck
	incomplete := filepath.Join(dir, "incomplete.json")
	os.WriteFile(incomplete, []byte(`{"kind":"standard","scale":[1]}`), 0o600) //nolint:errcheck

	l := &Loader{}
	for _, src := range []string{filepath.Join(dir, "missing.json"), garbage, incomplete} {
		if _, err := l.Load(context.Background(), src); err == nil {
			t.Errorf("Load(%q) = nil error", src)
		}
	}
}

type fakeS3 struct {
	body   string
	err    error
	bucket string
	key    string
}

func (f *fakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	f.bucket = aws.StringValue(in.Bucket)
	f.key = aws.StringValue(in.Key)
	if f.err != nil {
		return nil, f.err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(f.body))}, nil
}

func TestLoad_S3(t *testing.T) {
	fake := &fakeS3{body: `{"kind":"standard","mean":[-21.0],"scale":[1.5]}`}
	l := &Loader{S3: fake}

	p, err := l.Load(context.Background(), "s3://cold-models/models/scaler_params.json")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if fake.bucket != "cold-models" || fake.key != "models/scaler_params.json" {
		t.Errorf("GetObject bucket=%q key=%q", fake.bucket, fake.key)
	}
	if p.Kind != KindStandard || p.Mean[0] != -21.0 {
		t.Errorf("Load() = %+v", p)
	}
}

func TestLoad_S3Errors(t *testing.T) {
	l := &Loader{S3: &fakeS3{err: errors.New("access denied")}}
	if _, err := l.Load(context.Background(), "s3://bucket/key.json"); err == nil || !strings.Contains(err.Error(), "access denied") {
		t.Errorf("Load() error = %v, want access denied", err)
	}
	if _, err := l.Load(context.Background(), "s3://bucket-only"); err == nil {
		t.Error("Load() with no key should fail")
	}
}
