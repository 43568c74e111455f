package netp2p

import "github.com/quic-go/quic-go"

func quicServerConfig() *quic.Config {
	return &quic.Config{
		MaxIncomingStreams:    256,
		EnableDatagrams:       true,
		MaxIdleTimeout:        quicMaxIdleTimeout,
		KeepAlivePeriod:       quicKeepAlive,
	}
}

func quicClientConfig() *quic.Config {
	return &quic.Config{
		EnableDatagrams: true,
		MaxIdleTimeout:  quicMaxIdleTimeout,
		KeepAlivePeriod: quicKeepAlive,
	}
}
