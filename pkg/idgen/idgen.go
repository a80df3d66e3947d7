package idgen

import (
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
)

// 单号格式：前缀 + 年月日时分秒 + 雪花ID后8位，例如 ORD20240115143052_12345678

var (
	node     *snowflake.Node
	nodeOnce sync.Once
	initErr  error
)

// Init 初始化默认节点，workerID 取值 0-1023
func Init(workerID int64) error {
	nodeOnce.Do(func() {
		node, initErr = snowflake.NewNode(workerID)
	})
	return initErr
}

// NextID 生成下一个ID，未初始化时默认使用 workerID = 1
func NextID() int64 {
	if err := Init(1); err != nil {
		panic(err)
	}
	return node.Generate().Int64()
}

func withPrefix(prefix string) string {
	id := NextID()
	return fmt.Sprintf("%s%s%08d", prefix, time.Now().Format("20060102150405"), id%100000000)
}

// GenerateOrderNo 生成订单号
func GenerateOrderNo() string {
	return withPrefix("ORD")
}

// GenerateTransactionNo 生成流水号
func GenerateTransactionNo() string {
	return withPrefix("TXN")
}
