package main

import "time"

const (
	examplePut  = "nfccp -t ./ticket.yaml put ./disk.vmdk '[datastore1] vm/disk.vmdk'"
	exampleGet  = "nfccp -t ./ticket.yaml get '[datastore1] vm/vm.vmx' ./vm.vmx"
	exampleRm   = "nfccp -t ./ticket.yaml rm '[datastore1] vm/old.log'"
	exampleMv   = "nfccp -t ./ticket.yaml mv '[datastore1] vm/a.vmdk' '[datastore1] vm/b.vmdk'"
	examplePing = "nfccp -H esx01.example.com -s 52b6-ticket ping"

	// defaultConnectTimeout bounds the dial when neither flag nor ticket file set one.
	defaultConnectTimeout = 30 * time.Second

	// directory under $HOME holding the thumbprint trust store
	stateDirName = ".nfccp"
)
