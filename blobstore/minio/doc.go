// Package minio stores backup blobs on MinIO or any other S3-compatible
// server (Ceph, SeaweedFS, Garage) through the MinIO Go client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "backups", "orders/")
//	_, err = db.Backup(ctx, store)
//
// Use this package instead of blobstore/s3 where the AWS SDK is unwanted,
// for example on air-gapped hosts.
package minio
