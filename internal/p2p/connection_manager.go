package p2p

import (
	"context"
	"time"

	log "github.com/koinos/koinos-log-golang"
	"github.com/koinos/koinos-txrelay/internal/options"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"

	multiaddr "github.com/multiformats/go-multiaddr"
)

const initialPeerRetryTime = time.Second * 10

type connectionMessage struct {
	net  network.Network
	conn network.Conn
}

type peerSetMessage struct {
	returnChan chan<- PeerSet
}

type isConnectedMessage struct {
	id         peer.ID
	returnChan chan<- bool
}

// ConnectionManager tracks connected peers using the network.Notifiee interface
// and keeps the initial peers connected
type ConnectionManager struct {
	host host.Host
	opts options.NodeOptions

	initialPeers   map[peer.ID]peer.AddrInfo
	connectedPeers map[peer.ID]network.Conn

	peerConnectedChan    chan connectionMessage
	peerDisconnectedChan chan connectionMessage
	peerSetChan          chan *peerSetMessage
	isConnectedChan      chan *isConnectedMessage
	done                 chan struct{}
}

// NewConnectionManager creates a new ConnectionManager
func NewConnectionManager(host host.Host, opts options.NodeOptions, initialPeers []peer.AddrInfo) *ConnectionManager {
	connectionManager := ConnectionManager{
		host:                 host,
		opts:                 opts,
		initialPeers:         make(map[peer.ID]peer.AddrInfo),
		connectedPeers:       make(map[peer.ID]network.Conn),
		peerConnectedChan:    make(chan connectionMessage),
		peerDisconnectedChan: make(chan connectionMessage),
		peerSetChan:          make(chan *peerSetMessage),
		isConnectedChan:      make(chan *isConnectedMessage),
		done:                 make(chan struct{}),
	}

	for _, peer := range initialPeers {
		connectionManager.initialPeers[peer.ID] = peer
	}

	return &connectionManager
}

// Connected is part of the libp2p network.Notifiee interface
func (c *ConnectionManager) Connected(net network.Network, conn network.Conn) {
	select {
	case c.peerConnectedChan <- connectionMessage{net: net, conn: conn}:
	case <-c.done:
	}
}

// Disconnected is part of the libp2p network.Notifiee interface
func (c *ConnectionManager) Disconnected(net network.Network, conn network.Conn) {
	select {
	case c.peerDisconnectedChan <- connectionMessage{net: net, conn: conn}:
	case <-c.done:
	}
}

// Listen is part of the libp2p network.Notifiee interface
func (c *ConnectionManager) Listen(n network.Network, _ multiaddr.Multiaddr) {
}

// ListenClose is part of the libp2p network.Notifiee interface
func (c *ConnectionManager) ListenClose(n network.Network, _ multiaddr.Multiaddr) {
}

// Peers returns the currently connected peers
func (c *ConnectionManager) Peers(ctx context.Context) PeerSet {
	returnChan := make(chan PeerSet, 1)

	select {
	case c.peerSetChan <- &peerSetMessage{returnChan}:
	case <-ctx.Done():
		return PeerSet{}
	}

	select {
	case peers := <-returnChan:
		return peers
	case <-ctx.Done():
		return PeerSet{}
	}
}

// IsConnected returns true if the peer is connected
func (c *ConnectionManager) IsConnected(ctx context.Context, pid peer.ID) bool {
	returnChan := make(chan bool, 1)

	select {
	case c.isConnectedChan <- &isConnectedMessage{pid, returnChan}:
	case <-ctx.Done():
		return false
	}

	select {
	case connected := <-returnChan:
		return connected
	case <-ctx.Done():
		return false
	}
}

func (c *ConnectionManager) handleConnected(msg connectionMessage) {
	pid := msg.conn.RemotePeer()

	if _, ok := c.connectedPeers[pid]; !ok {
		log.Debugf("Connected to peer: %s/p2p/%s", msg.conn.RemoteMultiaddr(), pid)
		c.connectedPeers[pid] = msg.conn
	}
}

func (c *ConnectionManager) handleDisconnected(msg connectionMessage) {
	pid := msg.conn.RemotePeer()

	// Another connection to the peer may still be open
	if len(c.host.Network().ConnsToPeer(pid)) > 0 {
		return
	}

	if _, ok := c.connectedPeers[pid]; !ok {
		return
	}

	delete(c.connectedPeers, pid)
	log.Debugf("Disconnected from peer: %s/p2p/%s", msg.conn.RemoteMultiaddr(), pid)
}

func (c *ConnectionManager) handleGetPeers(msg *peerSetMessage) {
	peers := make(PeerSet, len(c.connectedPeers))
	for pid, conn := range c.connectedPeers {
		peers[pid] = PeerInfo{Addrs: []multiaddr.Multiaddr{conn.RemoteMultiaddr()}}
	}

	msg.returnChan <- peers
}

func (c *ConnectionManager) handleIsConnected(msg *isConnectedMessage) {
	_, connected := c.connectedPeers[msg.id]
	msg.returnChan <- connected
}

func (c *ConnectionManager) connectInitialPeers(ctx context.Context) {
	for {
		for peer, addr := range c.initialPeers {
			if !c.IsConnected(ctx, peer) {
				log.Infof("Attempting to connect to peer %v", peer)
				connectCtx, cancel := context.WithTimeout(ctx, c.opts.PeerConnectTimeout)
				if err := c.host.Connect(connectCtx, addr); err != nil {
					log.Infof("Error connecting to peer %v: %s", peer, err)
				}
				cancel()
			}
		}

		select {
		case <-time.After(initialPeerRetryTime):
		case <-ctx.Done():
			return
		}
	}
}

func (c *ConnectionManager) managerLoop(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case connMsg := <-c.peerConnectedChan:
			c.handleConnected(connMsg)
		case connMsg := <-c.peerDisconnectedChan:
			c.handleDisconnected(connMsg)
		case peerSetMsg := <-c.peerSetChan:
			c.handleGetPeers(peerSetMsg)
		case isConnectedMsg := <-c.isConnectedChan:
			c.handleIsConnected(isConnectedMsg)

		case <-ctx.Done():
			c.connectedPeers = make(map[peer.ID]network.Conn)
			return
		}
	}
}

// Start the connection manager
func (c *ConnectionManager) Start(ctx context.Context) {
	go c.managerLoop(ctx)

	go func() {
		for _, peer := range c.host.Network().Peers() {
			conns := c.host.Network().ConnsToPeer(peer)
			if len(conns) > 0 {
				select {
				case c.peerConnectedChan <- connectionMessage{net: c.host.Network(), conn: conns[0]}:
				case <-ctx.Done():
					return
				}
			}
		}

		c.connectInitialPeers(ctx)
	}()
}
