package reservation

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bookhive/bookhive/internal/errs"
	"github.com/bookhive/bookhive/internal/rpc"
)

// RPCChecker resolves existence questions by calling another service's
// get operation over the broker. A null or missing entity means the id
// does not exist; rpc timeouts and transport failures propagate tagged.
type RPCChecker struct {
	client      *rpc.Client
	destination string
	op          string
	timeout     time.Duration
}

func NewRPCChecker(client *rpc.Client, destination, op string, timeout time.Duration) (*RPCChecker, error) {
	if client == nil {
		return nil, errs.New(errs.KindInternal, "rpc client is required")
	}
	return &RPCChecker{client: client, destination: destination, op: op, timeout: timeout}, nil
}

type existsRequest struct {
	ID string `json:"id"`
}

func (c *RPCChecker) Exists(ctx context.Context, id string) (bool, error) {
	var entity json.RawMessage
	err := c.client.Invoke(ctx, c.destination, c.op, existsRequest{ID: id}, &entity, c.timeout)
	if err != nil {
		if errs.IsKind(err, errs.KindNotFound) {
			return false, nil
		}
		return false, err
	}
	data := string(entity)
	return data != "" && data != "null", nil
}
