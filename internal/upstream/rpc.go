package upstream

import (
	"encoding/json"
	"fmt"
)

// subscribeRequestID is the JSON-RPC id of the one request a session sends.
const subscribeRequestID = 1

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type mentionsFilter struct {
	Mentions []string `json:"mentions"`
}

type commitmentConfig struct {
	Commitment string `json:"commitment"`
}

// subscribeRequest builds the logsSubscribe call for programID.
func subscribeRequest(programID, commitment string) ([]byte, error) {
	return json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      subscribeRequestID,
		Method:  "logsSubscribe",
		Params: []any{
			mentionsFilter{Mentions: []string{programID}},
			commitmentConfig{Commitment: commitment},
		},
	})
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type rpcResponse struct {
	ID     *int            `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// parseAck inspects a frame received while waiting for the subscription
// acknowledgment. It returns matched=false for frames that are not the
// response to the subscribe request.
func parseAck(data []byte) (subscriptionID uint64, matched bool, err error) {
	var resp rpcResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, false, nil
	}
	if resp.ID == nil || *resp.ID != subscribeRequestID {
		return 0, false, nil
	}
	if resp.Error != nil {
		return 0, true, resp.Error
	}
	if err := json.Unmarshal(resp.Result, &subscriptionID); err != nil {
		return 0, true, fmt.Errorf("subscription id: %w", err)
	}
	return subscriptionID, true, nil
}
