package repository

import (
	"encoding/json"
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/go-resty/resty/v2"
	"github.com/keywatch/go-keywatch-client/global"
	"github.com/keywatch/go-keywatch-client/types"
)

func handleError(response *resty.Response) error {
	if response.StatusCode() == 404 {
		return types.ErrNotFound
	}
	if response.StatusCode() == 409 {
		return types.ErrConflict
	}
	if response.IsError() {
		var body map[string]interface{}
		uErr := json.Unmarshal(response.Body(), &body)
		if uErr != nil {
			level.Error(global.Logger).Log("error", uErr, "message", "failed to unmarshal store response")
			return fmt.Errorf("%s: %w", response.Status(), types.ErrStorage)
		}
		if errDesc, ok := body["error"]; ok {
			return fmt.Errorf("%v: %w", errDesc, types.ErrStorage)
		}
		return fmt.Errorf("%s: %w", response.Status(), types.ErrStorage)
	}
	return nil
}
