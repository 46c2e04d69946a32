package relay

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"debate_timer/internal/models"
)

// InstanceHeader 標記訊息來自哪個伺服器實例
const InstanceHeader = "Instance-ID"

// NATSConfig 是跨實例轉送的連線設定
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	MaxReconnects int
	ReconnectWait time.Duration
}

// ConnectNATS 依設定連線，斷線時自動重連
func ConnectNATS(cfg NATSConfig, name string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// NATSBridge 透過 NATS 在多個實例之間同步群組訊息
type NATSBridge struct {
	nc         *nats.Conn
	hub        *Hub
	prefix     string
	instanceID string
	sub        *nats.Subscription
}

// NewNATSBridge 訂閱 <prefix>.> 並把其他實例的訊息交給本機 Hub
func NewNATSBridge(nc *nats.Conn, hub *Hub, prefix, instanceID string) (*NATSBridge, error) {
	b := &NATSBridge{nc: nc, hub: hub, prefix: prefix, instanceID: instanceID}

	sub, err := nc.Subscribe(prefix+".>", b.handle)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s.>: %w", prefix, err)
	}
	b.sub = sub
	hub.SetBridge(b)

	log.Info().Str("prefix", prefix).Str("instance", instanceID).Msg("relay bridge subscribed")
	return b, nil
}

// Forward 實作 Bridge
func (b *NATSBridge) Forward(group string, msg models.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode relay message: %w", err)
	}
	out := nats.NewMsg(b.prefix + "." + group)
	out.Header.Set(InstanceHeader, b.instanceID)
	out.Data = data
	if err := b.nc.PublishMsg(out); err != nil {
		return fmt.Errorf("publish to NATS: %w", err)
	}
	return nil
}

func (b *NATSBridge) handle(m *nats.Msg) {
	if m.Header.Get(InstanceHeader) == b.instanceID {
		return
	}
	group, ok := strings.CutPrefix(m.Subject, b.prefix+".")
	if !ok {
		return
	}
	var msg models.Message
	if err := json.Unmarshal(m.Data, &msg); err != nil {
		log.Warn().Err(err).Str("subject", m.Subject).Msg("dropping malformed bridged message")
		return
	}
	b.hub.Deliver(group, msg)
}

// Close 取消訂閱並停止轉送
func (b *NATSBridge) Close() error {
	b.hub.SetBridge(nil)
	if b.sub == nil {
		return nil
	}
	return b.sub.Unsubscribe()
}
