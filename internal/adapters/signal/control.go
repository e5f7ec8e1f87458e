package signal

func (ctl *SignalWSController) handlePing(conn *WsSignalConn, env inbound) {
	ctl.sendReply(conn, "pong", env.Ref, nil)
}
