package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/omeyang/tablekit/pkg/storage/xtable"
)

// record 是 xtblctl 操作的通用记录实体。
// 键同时作为普通字段存储，Version 由存储层回填。
type record struct {
	Partition string    `bson:"partition" json:"partition"`
	Row       string    `bson:"row" json:"row"`
	Payload   string    `bson:"payload,omitempty" json:"payload,omitempty"`
	UpdatedAt time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
	Version   int64     `bson:"-" json:"version"`
}

func (r record) PartitionKey() string { return r.Partition }
func (r record) RowKey() string       { return r.Row }

func (r *record) SetVersion(version int64) { r.Version = version }

// openTable 连接 MongoDB 并组装弹性表。
// 返回的 closer 负责断开客户端连接。
func openTable(cfg config, logger *slog.Logger) (*xtable.Resilient[record], func(context.Context) error, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("xtblctl: connect: %w", err)
	}
	closer := client.Disconnect

	coll := client.Database(cfg.Mongo.Database).Collection(cfg.Mongo.Collection)
	inner, err := xtable.NewMongoTable[record](coll)
	if err != nil {
		return nil, nil, errors.Join(err, closer(context.Background()))
	}

	table, err := xtable.NewResilient(inner,
		xtable.WithWriteAttempts(cfg.Retry.WriteAttempts),
		xtable.WithReadAttempts(cfg.Retry.ReadAttempts),
		xtable.WithRetryDelay(cfg.Retry.Delay),
		xtable.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, errors.Join(err, closer(context.Background()))
	}
	return table, closer, nil
}

// withTable 处理每个子命令共同的建连 / 断连样板。
func withTable(ctx context.Context, cmd *cli.Command, fn func(ctx context.Context, table *xtable.Resilient[record]) error) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	applyFlagOverrides(&cfg, cmd)

	logger := newLogger(cfg.Log)
	table, closer, err := openTable(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closer(context.Background()); cerr != nil {
			logger.Warn("disconnect failed", slog.String("error", cerr.Error()))
		}
	}()

	return fn(ctx, table)
}

// applyFlagOverrides 用命令行参数覆盖配置文件的连接信息。
func applyFlagOverrides(cfg *config, cmd *cli.Command) {
	if uri := cmd.String("uri"); uri != "" {
		cfg.Mongo.URI = uri
	}
	if db := cmd.String("database"); db != "" {
		cfg.Mongo.Database = db
	}
	if coll := cmd.String("collection"); coll != "" {
		cfg.Mongo.Collection = coll
	}
}

func createCommands() []*cli.Command {
	return []*cli.Command{
		createCheckCommand(),
		createGetCommand(),
		createPutCommand(),
		createDeleteCommand(),
		createScanCommand(),
	}
}

// createCheckCommand 创建 check 子命令：确认表与键索引就绪。
func createCheckCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "检查表是否就绪，必要时创建集合与键索引",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withTable(ctx, cmd, func(ctx context.Context, table *xtable.Resilient[record]) error {
				if err := table.EnsureTable(ctx); err != nil {
					return err
				}
				fmt.Printf("表 %s 就绪\n", table.Name())
				return nil
			})
		},
	}
}

// createGetCommand 创建 get 子命令。
func createGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "按键读取一条记录",
		ArgsUsage: "<partition> <row>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) != 2 {
				return &usageError{msg: "get 需要 <partition> <row> 两个参数"}
			}

			return withTable(ctx, cmd, func(ctx context.Context, table *xtable.Resilient[record]) error {
				rec, err := table.Get(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSON(rec)
			})
		},
	}
}

// createPutCommand 创建 put 子命令。
func createPutCommand() *cli.Command {
	return &cli.Command{
		Name:      "put",
		Usage:     "写入一条记录（已存在时整体替换）",
		ArgsUsage: "<partition> <row|-> [payload]",
		Description: "row 参数为 \"-\" 时自动生成 UUID 行键。",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) < 2 || len(args) > 3 {
				return &usageError{msg: "put 需要 <partition> <row|-> [payload] 参数"}
			}

			rec := record{
				Partition: args[0],
				Row:       args[1],
				UpdatedAt: time.Now().UTC(),
			}
			if rec.Row == "-" {
				rec.Row = uuid.NewString()
			}
			if len(args) == 3 {
				rec.Payload = args[2]
			}

			return withTable(ctx, cmd, func(ctx context.Context, table *xtable.Resilient[record]) error {
				if err := table.InsertOrReplace(ctx, rec); err != nil {
					return err
				}
				fmt.Printf("已写入 %s/%s\n", rec.Partition, rec.Row)
				return nil
			})
		},
	}
}

// createDeleteCommand 创建 delete 子命令。
func createDeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"del"},
		Usage:     "删除一条记录（缺失不视为错误）",
		ArgsUsage: "<partition> <row>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args().Slice()
			if len(args) != 2 {
				return &usageError{msg: "delete 需要 <partition> <row> 两个参数"}
			}

			return withTable(ctx, cmd, func(ctx context.Context, table *xtable.Resilient[record]) error {
				deleted, err := table.DeleteIfExists(ctx, record{Partition: args[0], Row: args[1]})
				if err != nil {
					return err
				}
				if deleted {
					fmt.Printf("已删除 %s/%s\n", args[0], args[1])
				} else {
					fmt.Printf("%s/%s 不存在\n", args[0], args[1])
				}
				return nil
			})
		},
	}
}

// createScanCommand 创建 scan 子命令。
func createScanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "按块扫描记录并逐条输出",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "partition",
				Aliases: []string{"p"},
				Usage:   "限定分区，为空扫描全表",
			},
			&cli.IntFlag{
				Name:  "chunk",
				Usage: "每块记录数",
				Value: 100,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			partition := cmd.String("partition")
			chunk := cmd.Int("chunk")

			return withTable(ctx, cmd, func(ctx context.Context, table *xtable.Resilient[record]) error {
				emit := func(_ context.Context, records []record) error {
					for _, rec := range records {
						if err := printJSON(rec); err != nil {
							return err
						}
					}
					return nil
				}

				if partition != "" {
					return table.ScanPartition(ctx, partition, chunk, emit)
				}
				return table.ScanAll(ctx, chunk, emit)
			})
		},
	}
}

func printJSON(rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
