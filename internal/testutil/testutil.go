// Package testutil provides common test utilities and helpers for Kelp tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BTreeMap/Kelp/internal/models"
)

// SampleFlow returns a valid three-stop evening flow starting at 6:00 PM.
func SampleFlow() models.Flow {
	f := models.Flow{
		ID: "flow-test",
		Stops: []models.FlowStop{
			{ID: "s1", Name: "Pasta House", Category: "Italian", Rating: 4.5, Price: "$$", Reason: "Great pasta", Time: "6:00 PM", Duration: 90, Tags: []string{"Dinner"}},
			{ID: "s2", Name: "Blue Bar", Category: "Bars", Rating: 4.1, Price: "$$", Reason: "Good drinks", Time: "7:30 PM", Duration: 60, Tags: []string{"Bar"}},
			{ID: "s3", Name: "Club Nova", Category: "Dance Clubs", Rating: 4.0, Price: "$$$", Reason: "Dancing", Time: "8:30 PM", Duration: 120, Tags: []string{"Nightclub"}},
		},
		BudgetRange: "$40-80 per person",
	}
	f.RecomputeTotal()
	return f
}

// AssertHTTPStatus checks the HTTP status code and fails the test if it doesn't match.
func AssertHTTPStatus(t *testing.T, expected, actual int, context string) {
	t.Helper()
	if actual != expected {
		t.Errorf("%s: expected status %d, got %d", context, expected, actual)
	}
}

// AssertErrorResponse decodes an error body and checks it carries a message.
func AssertErrorResponse(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp models.ErrorResponse
	MustUnmarshalJSON(t, rr.Body.Bytes(), &resp)
	if resp.Error == "" {
		t.Errorf("expected an error message, body: %s", rr.Body.String())
	}
	return resp.Error
}

// CreateHTTPRequest creates an HTTP request with optional JSON body for testing.
// A string body is sent verbatim; anything else is marshaled.
func CreateHTTPRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	t.Helper()
	var reqBody *bytes.Buffer
	switch b := body.(type) {
	case nil:
		reqBody = bytes.NewBuffer(nil)
	case string:
		reqBody = bytes.NewBufferString(b)
	default:
		reqBody = bytes.NewBuffer(MustMarshalJSON(t, b))
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		t.Fatalf("failed to create HTTP request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

// MustMarshalJSON marshals v to JSON and fails the test on error.
func MustMarshalJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return data
}

// MustUnmarshalJSON unmarshals JSON data into target and fails the test on error.
func MustUnmarshalJSON(t *testing.T, data []byte, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, target); err != nil {
		t.Fatalf("failed to unmarshal JSON: %v (data: %s)", err, data)
	}
}
