// Package usererr recognizes errors that database code raises on purpose to
// tell the end user something, and replaces them with translated messages.
//
// A stored procedure or trigger raises an exception whose text starts with a
// fixed prefix followed by a payload (see package payload):
//
//	RAISE EXCEPTION 'app-exception: order.closed|order:%', order_id;
//
// Handler.Handle classifies the driver error, strips the envelope and the
// prefix, parses the payload, translates it and returns an *Error that wraps
// the original. Every other error passes through untouched.
package usererr
