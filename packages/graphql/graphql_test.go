package graphql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/abdul-hamid-achik/reqflow/packages/assertions"
	"github.com/abdul-hamid-achik/reqflow/packages/fluent"
	"github.com/abdul-hamid-achik/reqflow/packages/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const companyQuery = "query ExampleQuery {company {ceo}roadster{apoapsis_au}}"

func graphqlServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var payload struct {
			Query         string         `json:"query"`
			Variables     map[string]any `json:"variables"`
			OperationName string         `json:"operationName"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch {
		case payload.Query == companyQuery:
			_, _ = w.Write([]byte(`{"data": {"company": {"ceo": "Elon Musk"}, "roadster": {"apoapsis_au": 1.664332332453025}}}`))
		case payload.Variables["var"] == "1":
			_, _ = w.Write([]byte(`{"data": {"cart": {"totalUniqueItems": 1, "token": "` + r.Header.Get("Authorization") + `"}}}`))
		case payload.OperationName == "Broken":
			_, _ = w.Write([]byte(`{"data": null, "errors": [{"message": "Cannot query field \"nope\""}]}`))
		default:
			_, _ = w.Write([]byte(`{"data": {"echo": "` + payload.Query + `"}}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGiven_OperationText(t *testing.T) {
	g := Given(NewClient("http://example.com")).Query(companyQuery)
	assert.Equal(t, companyQuery, g.OperationText())
}

func TestQuery_Data(t *testing.T) {
	client := NewClient(graphqlServer(t).URL)

	resp, err := Given(client).Query(companyQuery).When().Send(context.Background())
	require.NoError(t, err)

	assert.Equal(t, response.GraphQL, resp.Kind())
	assert.Equal(t, 200, resp.StatusCode())
	ceo, err := resp.Query("company.ceo")
	require.NoError(t, err)
	assert.Equal(t, "Elon Musk", ceo)
	assert.Nil(t, resp.Errors())

	body, ok := resp.Body().(map[string]any)
	require.True(t, ok)
	assert.Contains(t, body, "data")
}

func TestQuery_ExpectingData(t *testing.T) {
	client := NewClient(graphqlServer(t).URL)

	Given(client).Query(companyQuery).Then(context.Background()).
		Status(200).
		Content(assertions.Equals(map[string]any{
			"company":  map[string]any{"ceo": "Elon Musk"},
			"roadster": map[string]any{"apoapsis_au": 1.664332332453025},
		})).
		Errors(assertions.IsNull()).
		Require(t)
}

func TestVariablesAndAuth(t *testing.T) {
	client := NewClient(graphqlServer(t).URL)

	Given(client).
		Query(`query testQuery($var: ID!) { cart(id: $var) { totalUniqueItems } }`).
		Variables(map[string]any{"var": "1"}).
		When().
		WithBearer("abc").
		Then(context.Background()).
		Body("cart.totalUniqueItems", 1).
		Body("cart.token", "Bearer abc").
		Require(t)
}

func TestErrors(t *testing.T) {
	client := NewClient(graphqlServer(t).URL)

	resp, err := Given(client).Query("query Broken { nope }").OperationName("Broken").When().Send(context.Background())
	require.NoError(t, err)

	assert.Nil(t, resp.Content())
	require.NoError(t, resp.CheckErrors(assertions.HasLength(1)))

	_, err = resp.Query("nope")
	assert.ErrorIs(t, err, response.ErrPathResolution)
}

func TestMutation(t *testing.T) {
	client := NewClient(graphqlServer(t).URL)

	Given(client).Mutation("mutation { add }").Then(context.Background()).
		Body("echo", "mutation { add }").
		Require(t)
}

func TestBuilderErrors(t *testing.T) {
	client := NewClient("http://example.com")

	tests := []struct {
		name string
		exp  *response.Expectation
	}{
		{name: "missing client", exp: Given(nil).Query("{ a }").Then(context.Background())},
		{name: "missing query", exp: Given(client).Then(context.Background())},
		{name: "two operations", exp: Given(client).Query("{ a }").Mutation("mutation { b }").Then(context.Background())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.exp.Err(), fluent.ErrInvalidArgument)
		})
	}
}

func TestRequest_Payload(t *testing.T) {
	r := &Request{Operation: "{ a }"}
	assert.Equal(t, map[string]any{"query": "{ a }", "variables": map[string]any(nil)}, r.Payload())

	r.OperationName = "A"
	assert.Equal(t, "A", r.Payload()["operationName"])
}
