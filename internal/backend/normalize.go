package backend

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// Envelope is the canonical response shape every backend reply is folded
// into before any downstream logic looks at it.
type Envelope struct {
	StatusCode int            `json:"statusCode"`
	Message    string         `json:"message"`
	Result     EnvelopeResult `json:"result"`
}

type EnvelopeResult struct {
	Data json.RawMessage `json:"data"`
}

// responseProbe covers the shapes the backend is known to emit:
// (a) {statusCode, message, result: {data}}
// (b) a bare payload at HTTP 200 with no envelope
// (c) {success: bool, message, data} or {success, message, result: {data}}
type responseProbe struct {
	StatusCode *int            `json:"statusCode"`
	Success    *bool           `json:"success"`
	Message    string          `json:"message"`
	Result     *EnvelopeResult `json:"result"`
	Data       json.RawMessage `json:"data"`
}

// Normalize folds a raw response body into the canonical envelope. An
// unrecognized shape is NOT an error: the payment may already exist
// server-side, so the body is wrapped as best-effort data and logged
// instead of blocking a possibly-successful payment from the user.
func Normalize(raw []byte, log zerolog.Logger) *Envelope {
	var probe responseProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		log.Warn().Err(err).Msg("unrecognized payment response shape, wrapping as-is")
		return &Envelope{
			StatusCode: http.StatusOK,
			Result:     EnvelopeResult{Data: raw},
		}
	}

	switch {
	case probe.StatusCode != nil:
		return &Envelope{
			StatusCode: *probe.StatusCode,
			Message:    probe.Message,
			Result:     EnvelopeResult{Data: probeData(&probe)},
		}
	case probe.Success != nil:
		code := http.StatusOK
		if !*probe.Success {
			code = http.StatusBadRequest
		}
		return &Envelope{
			StatusCode: code,
			Message:    probe.Message,
			Result:     EnvelopeResult{Data: probeData(&probe)},
		}
	default:
		// Bare payload at HTTP 200: the whole body is the data.
		return &Envelope{
			StatusCode: http.StatusOK,
			Result:     EnvelopeResult{Data: raw},
		}
	}
}

func probeData(p *responseProbe) json.RawMessage {
	if p.Result != nil && len(p.Result.Data) > 0 {
		return p.Result.Data
	}
	return p.Data
}

// Ok reports whether the normalized envelope carries a success status.
func (e *Envelope) Ok() bool {
	return e.StatusCode >= 200 && e.StatusCode < 300
}
