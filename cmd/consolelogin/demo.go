package main

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/MrEthical07/consolelogin/internal/fakeapi"
)

// demoAccounts covers every branch of the login flow.
var demoAccounts = []fakeapi.Account{
	{
		Identifier: "ada@example.com",
		AuthMethod: "password",
		Password:   "password123",
		Businesses: []fakeapi.Business{{ID: "biz-ada", Name: "Ada Stores"}},
	},
	{
		Identifier: "+2348012345678",
		AuthMethod: "pin",
		PIN:        "1234",
		Businesses: []fakeapi.Business{{ID: "biz-1", Name: "Lagos Branch"}, {ID: "biz-2", Name: "Abuja Branch"}},
	},
	{
		Identifier: "new@example.com",
		AuthMethod: "setup",
		OTP:        "123456",
		Businesses: []fakeapi.Business{{ID: "biz-new", Name: "New Venture"}},
	},
	{
		Identifier:    "legacy@example.com",
		AuthMethod:    "password",
		Password:      "password123",
		SetupRequired: true,
	},
}

// startDemo serves the in-memory backend on a loopback port.
func startDemo() (string, func(), error) {
	fake := fakeapi.New()
	for _, a := range demoAccounts {
		fake.AddAccount(a)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	srv := &http.Server{
		Handler:           fake.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = ln.Close()
		}
	}()
	return "http://" + ln.Addr().String(), func() { _ = srv.Close() }, nil
}
