package node

import (
	"context"
	"crypto/elliptic"
	crand "crypto/rand"
	"crypto/sha256"
	"fmt"

	"filippo.io/keygen"
	"github.com/ipfs/go-datastore"
	log "github.com/koinos/koinos-log-golang"
	koinosmq "github.com/koinos/koinos-mq-golang"
	"github.com/koinos/koinos-txrelay/internal/consensus"
	"github.com/koinos/koinos-txrelay/internal/ledger"
	"github.com/koinos/koinos-txrelay/internal/mempool"
	"github.com/koinos/koinos-txrelay/internal/options"
	"github.com/koinos/koinos-txrelay/internal/p2p"
	"github.com/koinos/koinos-txrelay/internal/rpc"
	"github.com/koinos/koinos-txrelay/internal/transaction"

	libp2p "github.com/libp2p/go-libp2p"
	gorpc "github.com/libp2p/go-libp2p-gorpc"
	dht "github.com/libp2p/go-libp2p-kad-dht"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/routing"
	multiaddr "github.com/multiformats/go-multiaddr"
)

// TxRelayNode is the core object representing a transaction relay node
type TxRelayNode struct {
	Host              host.Host
	DHT               *dht.IpfsDHT
	Server            *gorpc.Server
	Client            *gorpc.Client
	Ledger            *ledger.Ledger
	MemPool           *mempool.MemPool
	Environment       *p2p.NodeEnvironment
	Relay             *p2p.Relay
	Outbound          *p2p.Outbound
	Dispatcher        *p2p.Dispatcher
	ConnectionManager *p2p.ConnectionManager
	SyncManager       *p2p.SyncManager
	PluginRPCHandler  *rpc.PluginRPCHandler

	Options options.Config

	cancel context.CancelFunc
}

func generatePrivateKey(seed string) (crypto.PrivKey, error) {
	secret := make([]byte, sha256.Size)
	if seed == "" {
		if _, err := crand.Read(secret); err != nil {
			return nil, err
		}
	} else {
		sum := sha256.Sum256([]byte(seed))
		secret = sum[:]
	}

	key, err := keygen.ECDSA(elliptic.P256(), secret)
	if err != nil {
		return nil, err
	}

	privateKey, _, err := crypto.ECDSAKeyPairFromKey(key)
	return privateKey, err
}

func parsePeerAddresses(addrs []string) ([]peer.AddrInfo, error) {
	peers := make([]peer.AddrInfo, 0, len(addrs))

	for _, addr := range addrs {
		ma, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, err
		}

		addrInfo, err := peer.AddrInfoFromP2pAddr(ma)
		if err != nil {
			return nil, err
		}

		peers = append(peers, *addrInfo)
	}

	return peers, nil
}

// NewTxRelayNode creates a libp2p node object listening on the given multiaddress
// listenAddr is a multiaddress string on which to listen
// seed is the string from which the node key is derived. Use an empty string for a random key.
// requestHandler may be nil, in which case local services cannot reach the node.
func NewTxRelayNode(ctx context.Context, listenAddr string, requestHandler *koinosmq.RequestHandler, seed string, store datastore.Batching, config *options.Config) (*TxRelayNode, error) {
	privateKey, err := generatePrivateKey(seed)
	if err != nil {
		return nil, err
	}

	dhtMode := dht.ModeAutoServer
	if config.NodeOptions.EnableBootstrap {
		dhtMode = dht.ModeServer
	}

	var idht *dht.IpfsDHT

	hostOptions := []libp2p.Option{
		libp2p.ListenAddrStrings(listenAddr),
		libp2p.Identity(privateKey),
		libp2p.Routing(func(h host.Host) (routing.PeerRouting, error) {
			var err error
			idht, err = dht.New(ctx, h, dht.Mode(dhtMode))
			return idht, err
		}),
	}

	host, err := libp2p.New(hostOptions...)
	if err != nil {
		return nil, err
	}

	initialPeers, err := parsePeerAddresses(config.NodeOptions.InitialPeers)
	if err != nil {
		host.Close()
		return nil, err
	}

	syncPeers, err := parsePeerAddresses(config.NodeOptions.SyncPeers)
	if err != nil {
		host.Close()
		return nil, err
	}

	syncPeerIDs := make([]peer.ID, 0, len(syncPeers))
	for _, addrInfo := range syncPeers {
		syncPeerIDs = append(syncPeerIDs, addrInfo.ID)
		initialPeers = append(initialPeers, addrInfo)
	}

	node := &TxRelayNode{
		Host:    host,
		DHT:     idht,
		Options: *config,
	}

	node.Ledger = ledger.NewLedger(store)
	node.MemPool = mempool.NewMemPool(store)
	node.Environment = p2p.NewNodeEnvironment(
		config.NodeOptions.EnableBootstrap,
		node.MemPool,
		node.Ledger,
		consensus.NewVerifier(config.ConsensusOptions),
	)
	node.Environment.SetLocalAddress(host.ID())

	node.Client = gorpc.NewClient(host, rpc.PeerRPCID)
	node.Outbound = p2p.NewOutbound(rpc.NewPeerRPC(node.Client), config.OutboundOptions)
	node.Relay = p2p.NewRelay(node.Environment, node.Outbound, config.RelayOptions)
	node.ConnectionManager = p2p.NewConnectionManager(host, config.NodeOptions, initialPeers)
	node.Dispatcher = p2p.NewDispatcher(node.Relay, node.ConnectionManager, config.DispatcherOptions)
	node.SyncManager = p2p.NewSyncManager(node.Relay, node.ConnectionManager, syncPeerIDs, config.SyncManagerOptions)

	log.Debugf("Registering Relay Service")
	node.Server = gorpc.NewServer(host, rpc.PeerRPCID)
	err = node.Server.Register(rpc.NewRelayService(node.Dispatcher))
	if err != nil {
		host.Close()
		return nil, err
	}

	if requestHandler != nil {
		node.PluginRPCHandler = rpc.NewPluginRPCHandler(node, config.NodeOptions.LocalRPCTimeout)
		node.PluginRPCHandler.Register(requestHandler)
	}

	return node, nil
}

// SubmitTransaction admits a transaction created by a local service and propagates it to all peers
func (n *TxRelayNode) SubmitTransaction(ctx context.Context, data []byte) error {
	return n.Relay.SubmitTransaction(ctx, data, n.ConnectionManager.Peers(ctx))
}

// CommitTransaction records a transaction included in a block and removes it from the memory pool
func (n *TxRelayNode) CommitTransaction(ctx context.Context, data []byte) error {
	trx, err := transaction.Unmarshal(data)
	if err != nil {
		return err
	}

	if err := n.Ledger.Apply(ctx, trx); err != nil {
		return err
	}

	id, err := trx.ID()
	if err != nil {
		return err
	}

	if n.MemPool.Remove(id) {
		log.Debugf("Removed committed transaction from memory pool - %s", trx)
	}

	if err := n.MemPool.Cleanse(ctx, n.Ledger); err != nil {
		log.Warnf("Unable to cleanse memory pool, %s", err)
	}

	if err := n.MemPool.Store(ctx); err != nil {
		log.Warnf("Unable to store memory pool, %s", err)
	}

	return nil
}

// ConnectToPeer connects the node to the given peer
func (n *TxRelayNode) ConnectToPeer(ctx context.Context, peerAddr string) (*peer.AddrInfo, error) {
	peers, err := parsePeerAddresses([]string{peerAddr})
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, n.Options.NodeOptions.PeerConnectTimeout)
	defer cancel()
	if err := n.Host.Connect(connectCtx, peers[0]); err != nil {
		return nil, err
	}

	return &peers[0], nil
}

// ConnectedPeers returns the currently connected peers
func (n *TxRelayNode) ConnectedPeers(ctx context.Context) p2p.PeerSet {
	return n.ConnectionManager.Peers(ctx)
}

// GetListenAddress returns the multiaddress on which the node is listening
func (n *TxRelayNode) GetListenAddress() multiaddr.Multiaddr {
	return n.Host.Addrs()[0]
}

// GetPeerAddress returns the ipfs multiaddress to which other peers should connect
func (n *TxRelayNode) GetPeerAddress() multiaddr.Multiaddr {
	hostAddr, _ := multiaddr.NewMultiaddr(fmt.Sprintf("/p2p/%s", n.Host.ID()))
	return n.GetListenAddress().Encapsulate(hostAddr)
}

// Start the node
func (n *TxRelayNode) Start(ctx context.Context) {
	ctx, n.cancel = context.WithCancel(ctx)

	loaded, err := n.MemPool.Load(ctx, n.Ledger)
	if err != nil {
		log.Warnf("Unable to restore memory pool, %s", err)
	} else {
		log.Infof("Restored %d transactions to the memory pool", loaded)
	}

	n.Outbound.Start(ctx)
	n.Dispatcher.Start(ctx)

	n.Host.Network().Notify(n.ConnectionManager)
	n.ConnectionManager.Start(ctx)
	n.SyncManager.Start(ctx)

	if n.DHT != nil {
		if err := n.DHT.Bootstrap(ctx); err != nil {
			log.Warnf("Unable to bootstrap DHT, %s", err)
		}
	}
}

// Close closes the node
func (n *TxRelayNode) Close() error {
	if n.cancel != nil {
		n.cancel()
	}

	if err := n.MemPool.Store(context.Background()); err != nil {
		log.Warnf("Unable to store memory pool, %s", err)
	}

	if n.DHT != nil {
		n.DHT.Close()
	}

	if err := n.Host.Close(); err != nil {
		return err
	}

	return nil
}
