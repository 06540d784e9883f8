package engine

import (
	"context"
	"net"

	"github.com/rs/zerolog/log"
)

const errorPrefix = "ERROR: "

// Handle implements the server.handler interface, allowing the engine to be used to respond
// to incoming connections. Each connection carries one command and receives one response.
func (e *Engine) Handle(conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Msg("error closing connection")
		}
	}()

	buf, err := e.readConn(conn)
	if err != nil {
		log.Debug().Err(err).Msg("read error")
		return
	}

	<-e.ready

	response, err := e.operations.Run(context.Background(), buf)
	if err != nil {
		e.reply(conn, []byte(errorPrefix+err.Error()))
		return
	}
	e.reply(conn, response)
}

func (e *Engine) reply(conn net.Conn, b []byte) {
	if _, err := conn.Write(b); err != nil {
		log.Debug().Err(err).Msg("error writing response")
	}
}

// ever connection that is incoming must be read, create a buffer to read the connection
func (e *Engine) readConn(conn net.Conn) ([]byte, error) {
	buf := make([]byte, e.maxBufferSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}
