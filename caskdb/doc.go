// Package caskdb provides a client for interacting with a caskdb key-value
// store over TCP.
//
// Example:
//
//	client, err := caskdb.Connect()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	_, err = client.PUT("foo", "bar")
//	val, err := client.GET("foo")
package caskdb
