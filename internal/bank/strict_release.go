//go:build !dev

package bank

const strictIdentify = false
