package model

import "strconv"

// Code is the request/response code carried by every envelope.
type Code int

const (
	OK           Code = 200
	OKConnect    Code = 201
	OKDisconnect Code = 202

	BadRequest Code = 400
	// NotFoundLegacy is the old 404 alias; clients may still send it, the server never does.
	NotFoundLegacy Code = 404
	NotFound       Code = 1200

	InternalError Code = 500

	Close      Code = 600
	Ping       Code = 700
	ServerPing Code = 701

	Connect    Code = 800
	Disconnect Code = 900

	FriendsList      Code = 1000
	SendText         Code = 1100
	MessagesRetrieve Code = 1300
	Describe         Code = 1400

	// ServerStart and ServerStop are console-level codes and never travel on the wire.
	ServerStart Code = 1500
	ServerStop  Code = 1600

	VoiceCallRequest Code = 1700
)

var codeNames = map[Code]string{
	OK:               "OK",
	OKConnect:        "OK_CONNECT",
	OKDisconnect:     "OK_DISCONNECT",
	BadRequest:       "BAD_REQUEST",
	NotFoundLegacy:   "NOT_FOUND",
	NotFound:         "NOT_FOUND",
	InternalError:    "INTERNAL_ERROR",
	Close:            "CLOSE",
	Ping:             "PING",
	ServerPing:       "SERVER_PING",
	Connect:          "CONNECT",
	Disconnect:       "DISCONNECT",
	FriendsList:      "FRIENDS_LIST",
	SendText:         "SEND_TEXT",
	MessagesRetrieve: "MESSAGES_RETRIEVE",
	Describe:         "DESCRIBE",
	ServerStart:      "SERVER_START",
	ServerStop:       "SERVER_STOP",
	VoiceCallRequest: "VOICECALL_REQUEST",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "CODE_" + strconv.Itoa(int(c))
}

// Known reports whether c belongs to the fixed enumeration.
func (c Code) Known() bool {
	_, ok := codeNames[c]
	return ok
}

// IsNotFound treats the legacy alias and the current value alike.
func (c Code) IsNotFound() bool {
	return c == NotFound || c == NotFoundLegacy
}
