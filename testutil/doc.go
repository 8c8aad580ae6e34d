/*
Package testutil 提供 distiset 测试的共享工具和辅助函数。

# 概述

testutil 包为上层包（artifacts、provenance、card、distiset 根包与
cmd）的单元测试提供统一的辅助能力。storage 与 dataset 自身的测试
不依赖此包，以避免循环导入。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertLeafEqual / AssertErrorCode / AssertJSONEqual /
    AssertContains
  - Redis 辅助: NewRedisFS / RedisRoot / RedisOptions，基于 miniredis
    启动内存 Redis 并在测试结束时清理

# 子包

  - testutil/mocks: MockFileSystem，包装任意存储后端并支持错误注入、
    远端标记与调用记录
  - testutil/fixtures: 测试数据工厂，提供 Table、SplitGroup、图像列、
    流水线配置与产物样例

# 使用示例

	ctx := testutil.TestContext(t)
	_, root := testutil.RedisRoot(t, "bucket", "datasets/run-1")
	testutil.AssertErrorCode(t, err, types.ErrTargetExists)
*/
package testutil
