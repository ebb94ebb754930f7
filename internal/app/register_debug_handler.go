// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/tilt_computer/internal/mpu6050"
)

// RegisterCmd is a register debugger request.
//
//	{"action":"get_map"}
//	{"action":"read","addr":"0x75"}
//	{"action":"read_all"}
//	{"action":"write","addr":"0x1A","value":"0x03"}
type RegisterCmd struct {
	Action  string `json:"action"`
	Address string `json:"addr,omitempty"`
	Value   string `json:"value,omitempty"`
}

// RegisterResponse is sent back for every request.
type RegisterResponse struct {
	Type        string                 `json:"type"` // "register_data", "register_map", "error"
	Address     string                 `json:"addr,omitempty"`
	Value       string                 `json:"value,omitempty"`
	Registers   map[string]string      `json:"registers,omitempty"`
	Timestamp   string                 `json:"timestamp,omitempty"`
	Message     string                 `json:"message,omitempty"`
	RegisterMap []mpu6050.RegisterInfo `json:"register_map,omitempty"`
}

// RegisterDebugger serves the MPU-6050 register map over a websocket.
// Writes are limited to the configured registers.
type RegisterDebugger struct {
	dev      *mpu6050.Dev
	writable func(reg byte) bool
}

// NewRegisterDebugger needs a device whose transport is shared safely with
// the sample loop (i2cbus.Serialized).
func NewRegisterDebugger(dev *mpu6050.Dev, writable func(reg byte) bool) *RegisterDebugger {
	if writable == nil {
		writable = func(byte) bool { return false }
	}
	return &RegisterDebugger{dev: dev, writable: writable}
}

// HandleWS runs one debugging session.
func (d *RegisterDebugger) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithField("component", "register_debug").Warnf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(d.registerMap()); err != nil {
		return
	}

	for {
		var cmd RegisterCmd
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithField("component", "register_debug").Warnf("websocket error: %v", err)
			}
			return
		}
		if err := conn.WriteJSON(d.Handle(cmd)); err != nil {
			return
		}
	}
}

// Handle executes one request.
func (d *RegisterDebugger) Handle(cmd RegisterCmd) RegisterResponse {
	switch cmd.Action {
	case "get_map":
		return d.registerMap()
	case "read":
		return d.handleRead(cmd)
	case "read_all":
		return d.handleReadAll()
	case "write":
		return d.handleWrite(cmd)
	case "":
		return errorResponse("missing or invalid action field")
	default:
		return errorResponse(fmt.Sprintf("unknown action: %s", cmd.Action))
	}
}

func (d *RegisterDebugger) handleRead(cmd RegisterCmd) RegisterResponse {
	reg, err := parseByte(cmd.Address)
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid address format: %q", cmd.Address))
	}
	v, err := d.dev.ReadRegister(reg)
	if err != nil {
		return errorResponse(fmt.Sprintf("read error: %v", err))
	}
	return RegisterResponse{
		Type:      "register_data",
		Address:   hexByte(reg),
		Value:     hexByte(v),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (d *RegisterDebugger) handleReadAll() RegisterResponse {
	values, err := d.dev.ReadRegisters(mpu6050.RegisterAddrs())
	if err != nil {
		return errorResponse(fmt.Sprintf("read all error: %v", err))
	}
	regMap := make(map[string]string, len(values))
	for reg, v := range values {
		regMap[hexByte(reg)] = hexByte(v)
	}
	return RegisterResponse{
		Type:      "register_data",
		Registers: regMap,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (d *RegisterDebugger) handleWrite(cmd RegisterCmd) RegisterResponse {
	reg, err := parseByte(cmd.Address)
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid address format: %q", cmd.Address))
	}
	v, err := parseByte(cmd.Value)
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid value format: %q", cmd.Value))
	}
	if !d.writable(reg) || mpu6050.ScaleLocked(reg) {
		return errorResponse(fmt.Sprintf("register %s is not writable", hexByte(reg)))
	}
	if err := d.dev.WriteRegister(reg, v); err != nil {
		return errorResponse(fmt.Sprintf("write error: %v", err))
	}
	log.WithField("component", "register_debug").Infof("wrote %s=%s", hexByte(reg), hexByte(v))
	return RegisterResponse{
		Type:      "register_data",
		Address:   hexByte(reg),
		Value:     hexByte(v),
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   "write successful",
	}
}

func (d *RegisterDebugger) registerMap() RegisterResponse {
	return RegisterResponse{Type: "register_map", RegisterMap: mpu6050.Registers()}
}

func errorResponse(msg string) RegisterResponse {
	return RegisterResponse{Type: "error", Message: msg}
}

func parseByte(s string) (byte, error) {
	v, err := strconv.ParseUint(s, 0, 8)
	return byte(v), err
}

func hexByte(b byte) string { return fmt.Sprintf("0x%02X", b) }
