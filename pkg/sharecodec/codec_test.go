package sharecodec

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleData() *ShareableAssessmentData {
	return &ShareableAssessmentData{
		Answers: map[string]float64{
			"access-control-1": 3,
			"monitoring-2":     1.5,
			"training-4":       0,
		},
		OrganizationData: &OrganizationData{
			OrganizationName: "Acme Corp",
			Industry:         "finance",
			EmployeeCount:    "1000-5000",
		},
		CompletedAt: "2025-03-14T09:26:53.589Z",
	}
}

// rawToken builds a token the way a browser client would
func rawToken(payload string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data *ShareableAssessmentData
	}{
		{
			name: "typical assessment",
			data: sampleData(),
		},
		{
			name: "empty answers",
			data: &ShareableAssessmentData{
				Answers:          map[string]float64{},
				OrganizationData: &OrganizationData{},
				CompletedAt:      "2025-01-01T00:00:00Z",
			},
		},
		{
			name: "multi-byte organization name",
			data: &ShareableAssessmentData{
				Answers: map[string]float64{"q1": 4},
				OrganizationData: &OrganizationData{
					OrganizationName: "Ünïcödé Örg™",
					Industry:         "製造業",
					EmployeeCount:    "50-249",
				},
				CompletedAt: "2025-06-30T12:00:00+03:00",
			},
		},
		{
			name: "emoji and negative scores",
			data: &ShareableAssessmentData{
				Answers:          map[string]float64{"q/1+2=3": -1, "q2": 1e-3},
				OrganizationData: &OrganizationData{OrganizationName: "Risk 🔒 Labs"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := Encode(tt.data)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}

			if strings.ContainsAny(token, "+/=") {
				t.Errorf("Encode() = %q, contains URL-unsafe characters", token)
			}

			decoded, err := Decode(token)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			if diff := cmp.Diff(tt.data, decoded); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeEmptyAnswersIsNotNil(t *testing.T) {
	token, err := Encode(&ShareableAssessmentData{
		Answers:          map[string]float64{},
		OrganizationData: &OrganizationData{OrganizationName: "Empty"},
	})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	decoded, err := Decode(token)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if decoded.Answers == nil {
		t.Fatal("Decode() answers = nil, expected empty map")
	}
	if len(decoded.Answers) != 0 {
		t.Errorf("Decode() answers len = %d, expected 0", len(decoded.Answers))
	}
}

func TestEncodeMatchesRawURLBase64(t *testing.T) {
	data := sampleData()

	payload, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}

	token, err := Encode(data)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	expected := base64.RawURLEncoding.EncodeToString(payload)
	if token != expected {
		t.Errorf("Encode() = %q, expected %q", token, expected)
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	first, err := Encode(sampleData())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	for i := 0; i < 10; i++ {
		again, err := Encode(sampleData())
		if err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
		if again != first {
			t.Fatalf("Encode() not deterministic: %q != %q", again, first)
		}
	}
}

func TestEncodeErrors(t *testing.T) {
	tests := []struct {
		name           string
		data           *ShareableAssessmentData
		wantEncoding   bool
		wantValidation string
	}{
		{
			name:         "nil payload",
			data:         nil,
			wantEncoding: true,
		},
		{
			name: "nil answers",
			data: &ShareableAssessmentData{
				OrganizationData: &OrganizationData{},
			},
			wantValidation: "answers",
		},
		{
			name: "nil organization data",
			data: &ShareableAssessmentData{
				Answers: map[string]float64{"q1": 1},
			},
			wantValidation: "organizationData",
		},
		{
			name: "unsupported float value",
			data: &ShareableAssessmentData{
				Answers:          map[string]float64{"q1": math.NaN()},
				OrganizationData: &OrganizationData{},
			},
			wantEncoding: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := Encode(tt.data)
			if err == nil {
				t.Fatalf("Encode() = %q, expected error", token)
			}
			if token != "" {
				t.Errorf("Encode() token = %q, expected empty on error", token)
			}

			var encErr *EncodingError
			if tt.wantEncoding && !errors.As(err, &encErr) {
				t.Errorf("Encode() error = %T %v, expected *EncodingError", err, err)
			}

			var valErr *ValidationError
			if tt.wantValidation != "" {
				if !errors.As(err, &valErr) {
					t.Fatalf("Encode() error = %T %v, expected *ValidationError", err, err)
				}
				if valErr.Field != tt.wantValidation {
					t.Errorf("ValidationError.Field = %q, expected %q", valErr.Field, tt.wantValidation)
				}
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	valid, err := Encode(sampleData())
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	tests := []struct {
		name           string
		token          string
		wantStage      string
		wantValidation string
	}{
		{
			name:      "empty token",
			token:     "",
			wantStage: "json",
		},
		{
			name:      "illegal base64 characters",
			token:     "not*a*token!",
			wantStage: "base64",
		},
		{
			name:      "impossible length",
			token:     "abcde",
			wantStage: "base64",
		},
		{
			name:  "truncated token",
			token: valid[:len(valid)-5],
		},
		{
			name:  "character inserted mid token",
			token: valid[:10] + "*" + valid[10:],
		},
		{
			name:      "not json",
			token:     rawToken("hello world"),
			wantStage: "json",
		},
		{
			name:      "invalid utf-8",
			token:     base64.RawURLEncoding.EncodeToString([]byte{'{', 0xff, 0xfe, '}'}),
			wantStage: "utf8",
		},
		{
			name:      "json array instead of object",
			token:     rawToken(`[1,2,3]`),
			wantStage: "json",
		},
		{
			name:      "wrong answer type",
			token:     rawToken(`{"answers":{"q1":"high"},"organizationData":{}}`),
			wantStage: "json",
		},
		{
			name:           "missing organization data",
			token:          rawToken(`{"answers":{"q1":2}}`),
			wantValidation: "organizationData",
		},
		{
			name:           "missing answers",
			token:          rawToken(`{"organizationData":{"organizationName":"Acme"}}`),
			wantValidation: "answers",
		},
		{
			name:           "null answers",
			token:          rawToken(`{"answers":null,"organizationData":{}}`),
			wantValidation: "answers",
		},
		{
			name:           "null organization data",
			token:          rawToken(`{"answers":{},"organizationData":null}`),
			wantValidation: "organizationData",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Decode(tt.token)
			if err == nil {
				t.Fatalf("Decode(%q) = %+v, expected error", tt.token, data)
			}
			if data != nil {
				t.Errorf("Decode(%q) returned partial data %+v", tt.token, data)
			}
			if !errors.Is(err, ErrInvalidLink) {
				t.Errorf("Decode(%q) error = %v, expected to match ErrInvalidLink", tt.token, err)
			}

			if tt.wantValidation != "" {
				var valErr *ValidationError
				if !errors.As(err, &valErr) {
					t.Fatalf("Decode(%q) error = %T %v, expected *ValidationError", tt.token, err, err)
				}
				if valErr.Field != tt.wantValidation {
					t.Errorf("ValidationError.Field = %q, expected %q", valErr.Field, tt.wantValidation)
				}
				return
			}

			var decErr *DecodingError
			if !errors.As(err, &decErr) {
				t.Fatalf("Decode(%q) error = %T %v, expected *DecodingError", tt.token, err, err)
			}
			if tt.wantStage != "" && decErr.Stage != tt.wantStage {
				t.Errorf("DecodingError.Stage = %q, expected %q", decErr.Stage, tt.wantStage)
			}
		})
	}
}

func TestDecodeToleratesAdditiveFields(t *testing.T) {
	token := rawToken(`{"answers":{"q1":3},"organizationData":{"organizationName":"Acme","region":"EU"},"completedAt":"2025-01-01T00:00:00Z","score":72}`)

	data, err := Decode(token)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	expected := &ShareableAssessmentData{
		Answers:          map[string]float64{"q1": 3},
		OrganizationData: &OrganizationData{OrganizationName: "Acme"},
		CompletedAt:      "2025-01-01T00:00:00Z",
	}
	if diff := cmp.Diff(expected, data); diff != "" {
		t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeAcceptsPaddedStandardBase64(t *testing.T) {
	payload := `{"answers":{"q1":1},"organizationData":{"organizationName":"Padded"}}`
	token := base64.StdEncoding.EncodeToString([]byte(payload))

	data, err := Decode(token)
	if err != nil {
		t.Fatalf("Decode(%q) error = %v", token, err)
	}
	if data.OrganizationData.OrganizationName != "Padded" {
		t.Errorf("OrganizationName = %q, expected %q", data.OrganizationData.OrganizationName, "Padded")
	}
}

func TestShareURLRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		baseURL    string
		wantPrefix string
	}{
		{
			name:       "plain base",
			baseURL:    "https://insiderriskindex.com",
			wantPrefix: "https://insiderriskindex.com/results/shared?data=",
		},
		{
			name:       "trailing slash",
			baseURL:    "https://insiderriskindex.com/",
			wantPrefix: "https://insiderriskindex.com/results/shared?data=",
		},
		{
			name:       "base with path",
			baseURL:    "http://localhost:8080/app",
			wantPrefix: "http://localhost:8080/app/results/shared?data=",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			link, err := ShareURL(tt.baseURL, sampleData())
			if err != nil {
				t.Fatalf("ShareURL() error = %v", err)
			}
			if !strings.HasPrefix(link, tt.wantPrefix) {
				t.Errorf("ShareURL() = %q, expected prefix %q", link, tt.wantPrefix)
			}

			token, err := TokenFromURL(link)
			if err != nil {
				t.Fatalf("TokenFromURL() error = %v", err)
			}

			decoded, err := Decode(token)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if diff := cmp.Diff(sampleData(), decoded); diff != "" {
				t.Errorf("share link round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTokenFromURLMissingParam(t *testing.T) {
	_, err := TokenFromURL("https://insiderriskindex.com/results/shared")
	if !errors.Is(err, ErrInvalidLink) {
		t.Errorf("TokenFromURL() error = %v, expected ErrInvalidLink", err)
	}
}
