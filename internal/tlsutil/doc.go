// Package tlsutil 为远程存储后端（Redis）连接提供安全加固的 TLS 设置
// （TLS 1.2+，仅 AEAD 密码套件）。
package tlsutil
