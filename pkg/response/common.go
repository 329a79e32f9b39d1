package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"github.com/beanbocchi/parcel/internal/model"
)

// CommonResponse is embedded into every JSON body. Error and Code are only
// set when Success is false.
type CommonResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// OK is the envelope of a successful response.
func OK() CommonResponse {
	return CommonResponse{Success: true}
}

// Err converts the envelope of a failed response back into a coded error.
func (r CommonResponse) Err() error {
	if r.Success {
		return nil
	}
	return model.NewError(r.Code, r.Error)
}

type messageResponse struct {
	CommonResponse
	Message string `json:"message"`
}

// FromError writes err as a failed response. Coded errors carry their own
// HTTP status; status is used for everything else.
func FromError(w http.ResponseWriter, status int, err error) error {
	body := CommonResponse{Error: err.Error()}

	var coded model.Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &coded):
		status = coded.Status()
		body.Error = coded.Message
		body.Code = coded.ErrCode
	case errors.As(err, &httpErr):
		status = httpErr.Code
		body.Error = http.StatusText(httpErr.Code)
		if msg, ok := httpErr.Message.(string); ok {
			body.Error = msg
		}
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	}

	return write(w, status, body)
}

// FromDTO writes dto as the response body.
func FromDTO(w http.ResponseWriter, status int, dto any) error {
	return write(w, status, dto)
}

// FromMessage writes a successful response carrying only a message.
func FromMessage(w http.ResponseWriter, status int, message string) error {
	return write(w, status, messageResponse{CommonResponse: OK(), Message: message})
}

func write(w http.ResponseWriter, status int, body any) error {
	data, err := sonic.Marshal(body)
	if err != nil {
		return err
	}

	w.Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	w.WriteHeader(status)
	_, err = w.Write(data)
	return err
}
