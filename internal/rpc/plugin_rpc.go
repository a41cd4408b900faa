package rpc

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/proto"

	log "github.com/koinos/koinos-log-golang"
	koinosmq "github.com/koinos/koinos-mq-golang"
	"github.com/koinos/koinos-proto-golang/koinos/rpc"
	"github.com/koinos/koinos-proto-golang/koinos/rpc/plugin"
	"github.com/koinos/koinos-txrelay/internal/p2perrors"
)

const (
	PluginPrefix = "plugin."

	// RelayPluginName is the plugin name local services submit transactions to
	RelayPluginName = "txrelay"

	// CommitTopic is the broadcast topic for transactions included in a block
	CommitTopic = "koinos.txrelay.commit"
)

// LocalNode is implemented by the relay node to serve requests from local services
type LocalNode interface {
	SubmitTransaction(ctx context.Context, data []byte) error
	CommitTransaction(ctx context.Context, data []byte) error
}

// PluginRPCHandler serves the relay's plugin interface over AMQP
type PluginRPCHandler struct {
	node    LocalNode
	timeout time.Duration
}

// NewPluginRPCHandler factory
func NewPluginRPCHandler(node LocalNode, timeout time.Duration) *PluginRPCHandler {
	return &PluginRPCHandler{
		node:    node,
		timeout: timeout,
	}
}

// Register installs the request and broadcast handlers on the request handler
func (h *PluginRPCHandler) Register(requestHandler *koinosmq.RequestHandler) {
	requestHandler.SetRPCHandler(PluginPrefix+RelayPluginName, h.HandleRequest)
	requestHandler.SetBroadcastHandler(CommitTopic, h.HandleCommit)
}

// HandleRequest handles a plugin request from a local service
func (h *PluginRPCHandler) HandleRequest(rpcType string, data []byte) ([]byte, error) {
	request := &plugin.PluginRequest{}
	response := &plugin.PluginResponse{}

	err := proto.Unmarshal(data, request)
	if err != nil {
		log.Warnf("Received malformed request: 0x%x", data)
		err = fmt.Errorf("%w, %s", p2perrors.ErrDeserialization, err)
	} else {
		log.Debugf("Received RPC request: %s", request.String())

		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		defer cancel()

		switch v := request.Request.(type) {
		case *plugin.PluginRequest_Reserved:
			response.Response = &plugin.PluginResponse_Reserved{
				Reserved: &rpc.ReservedRpc{},
			}

		case *plugin.PluginRequest_SubmitData:
			err = h.node.SubmitTransaction(ctx, v.SubmitData.Data)
			if err == nil {
				response.Response = &plugin.PluginResponse_SubmitData{
					SubmitData: &plugin.SubmitDataResponse{},
				}
			}

		default:
			err = fmt.Errorf("%w, unknown plugin request", p2perrors.ErrLocalRPC)
		}
	}

	if err != nil {
		response.Response = &plugin.PluginResponse_Error{
			Error: &rpc.ErrorResponse{
				Message: err.Error(),
			},
		}
	}

	return proto.Marshal(response)
}

// HandleCommit handles the broadcast of a transaction included in a block
func (h *PluginRPCHandler) HandleCommit(topic string, data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.node.CommitTransaction(ctx, data); err != nil {
		log.Warnf("Unable to process %s broadcast, %s", topic, err)
	}
}
